package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sellerbridge/sellerbridge/internal/documents"
	"github.com/sellerbridge/sellerbridge/internal/models"
)

// listOrders returns mirrored orders with optional filters
func (r *Router) listOrders(w http.ResponseWriter, req *http.Request) {
	query := r.db.Preload("Items").Order("created_at DESC")

	if accountID := req.URL.Query().Get("account_id"); accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	if status := req.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	limit := 100
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	var result []models.Order
	if err := query.Limit(limit).Find(&result).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list orders")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// getOrder returns one order with its lines
func (r *Router) getOrder(w http.ResponseWriter, req *http.Request) {
	order, ok := r.orderFromPath(w, req)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// cancelOrder relays a cancellation through supplier and marketplace
func (r *Router) cancelOrder(w http.ResponseWriter, req *http.Request) {
	order, ok := r.orderFromPath(w, req)
	if !ok {
		return
	}

	if err := r.relay.CancelOrder(req.Context(), order.ID); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// packingSlip streams the order's packing slip PDF
func (r *Router) packingSlip(w http.ResponseWriter, req *http.Request) {
	order, ok := r.orderFromPath(w, req)
	if !ok {
		return
	}

	pdf, err := documents.GeneratePackingSlip(order)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate packing slip")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=packing-slip-%s.pdf", order.MarketOrderID))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// orderFromPath loads the order addressed by the {id} path variable
func (r *Router) orderFromPath(w http.ResponseWriter, req *http.Request) (*models.Order, bool) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return nil, false
	}

	var order models.Order
	if err := r.db.Preload("Items").First(&order, uint(id)).Error; err != nil {
		respondError(w, http.StatusNotFound, "Order not found")
		return nil, false
	}
	return &order, true
}
