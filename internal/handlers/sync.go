package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sellerbridge/sellerbridge/internal/orchestrator"
)

// submitIngest registers a keyed bulk ingest task
func (r *Router) submitIngest(w http.ResponseWriter, req *http.Request) {
	var body orchestrator.IngestRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	taskID, err := r.orch.SubmitIngest(body)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"taskId": taskID,
		"status": "pending",
	})
}

// CollectionRequest asks for a full catalog walk of one account
type CollectionRequest struct {
	AccountID  uint    `json:"account_id"`
	MarginRate float64 `json:"margin_rate,omitempty"`
	DryRun     bool    `json:"dry_run,omitempty"`
}

// submitCollection registers a full catalog collection task
func (r *Router) submitCollection(w http.ResponseWriter, req *http.Request) {
	var body CollectionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	taskID, err := r.orch.SubmitCollection(body.AccountID, body.MarginRate, body.DryRun)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"taskId": taskID,
		"status": "pending",
	})
}

// PriceUpdateRequest applies a new margin rate to an account's catalog
type PriceUpdateRequest struct {
	AccountID  uint    `json:"account_id"`
	MarginRate float64 `json:"margin_rate"`
}

// submitPriceUpdate registers a reprice-and-republish task
func (r *Router) submitPriceUpdate(w http.ResponseWriter, req *http.Request) {
	var body PriceUpdateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	taskID, err := r.orch.SubmitPriceUpdate(body.AccountID, body.MarginRate)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"taskId": taskID,
		"status": "pending",
	})
}

// syncHistory lists batch records, optionally scoped to an account or task
func (r *Router) syncHistory(w http.ResponseWriter, req *http.Request) {
	var accountID uint
	if raw := req.URL.Query().Get("account_id"); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 32); err == nil {
			accountID = uint(n)
		}
	}

	limit := 100
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	history, err := r.orch.History(accountID, req.URL.Query().Get("task_id"), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list sync history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}
