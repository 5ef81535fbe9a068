package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sellerbridge/sellerbridge/internal/models"
)

// listProducts returns catalog products with optional filters
func (r *Router) listProducts(w http.ResponseWriter, req *http.Request) {
	query := r.db.Order("id ASC")

	if accountID := req.URL.Query().Get("account_id"); accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	if status := req.URL.Query().Get("sync_status"); status != "" {
		query = query.Where("sync_status = ?", status)
	}
	if category := req.URL.Query().Get("category"); category != "" {
		query = query.Where("category_key = ?", category)
	}

	limit := 100
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	var products []models.Product
	if err := query.Limit(limit).Find(&products).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// getProduct returns one catalog product
func (r *Router) getProduct(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	var product models.Product
	if err := r.db.First(&product, uint(id)).Error; err != nil {
		respondError(w, http.StatusNotFound, "Product not found")
		return
	}
	respondJSON(w, http.StatusOK, product)
}
