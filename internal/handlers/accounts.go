package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sellerbridge/sellerbridge/internal/models"
	"github.com/sellerbridge/sellerbridge/internal/utils"
)

// AccountRequest carries supplier account create/update fields. Secrets
// arrive here once and are stored encrypted; responses never echo them.
type AccountRequest struct {
	AccountName       string  `json:"accountName"`
	Username          string  `json:"username"`
	Password          string  `json:"password"`
	MarketAccessKey   string  `json:"marketAccessKey"`
	MarketSecretKey   string  `json:"marketSecretKey"`
	MarketVendorID    string  `json:"marketVendorId"`
	DefaultMarginRate float64 `json:"defaultMarginRate"`
	SyncEnabled       *bool   `json:"syncEnabled"`
}

// listAccounts returns all supplier accounts
func (r *Router) listAccounts(w http.ResponseWriter, req *http.Request) {
	var accounts []models.SupplierAccount
	if err := r.db.Order("id ASC").Find(&accounts).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

// createAccount registers a new supplier account
func (r *Router) createAccount(w http.ResponseWriter, req *http.Request) {
	var body AccountRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.AccountName == "" || body.Username == "" || body.Password == "" {
		respondError(w, http.StatusBadRequest, "accountName, username and password are required")
		return
	}

	encrypted, err := utils.EncryptCredential(r.cfg.EncKey, body.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to store credentials")
		return
	}

	account := models.SupplierAccount{
		AccountName:       body.AccountName,
		Username:          body.Username,
		PasswordEncrypted: encrypted,
		MarketAccessKey:   body.MarketAccessKey,
		MarketSecretKey:   body.MarketSecretKey,
		MarketVendorID:    body.MarketVendorID,
		DefaultMarginRate: body.DefaultMarginRate,
		SyncEnabled:       true,
		IsActive:          true,
	}
	if body.SyncEnabled != nil {
		account.SyncEnabled = *body.SyncEnabled
	}

	if err := r.db.Create(&account).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

// getAccount returns one supplier account
func (r *Router) getAccount(w http.ResponseWriter, req *http.Request) {
	account, ok := r.accountFromPath(w, req)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// updateAccount patches an existing supplier account
func (r *Router) updateAccount(w http.ResponseWriter, req *http.Request) {
	account, ok := r.accountFromPath(w, req)
	if !ok {
		return
	}

	var body AccountRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if body.AccountName != "" {
		account.AccountName = body.AccountName
	}
	if body.Username != "" {
		account.Username = body.Username
	}
	if body.Password != "" {
		encrypted, err := utils.EncryptCredential(r.cfg.EncKey, body.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to store credentials")
			return
		}
		account.PasswordEncrypted = encrypted
		// Credentials changed, so the cached token is no longer trusted
		r.tokens.Invalidate(account.ID)
	}
	if body.MarketAccessKey != "" {
		account.MarketAccessKey = body.MarketAccessKey
	}
	if body.MarketSecretKey != "" {
		account.MarketSecretKey = body.MarketSecretKey
	}
	if body.MarketVendorID != "" {
		account.MarketVendorID = body.MarketVendorID
	}
	if body.DefaultMarginRate != 0 {
		account.DefaultMarginRate = body.DefaultMarginRate
	}
	if body.SyncEnabled != nil {
		account.SyncEnabled = *body.SyncEnabled
	}

	if err := r.db.Save(account).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update account")
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// deleteAccount soft-deactivates an account; orders keep referencing it
func (r *Router) deleteAccount(w http.ResponseWriter, req *http.Request) {
	account, ok := r.accountFromPath(w, req)
	if !ok {
		return
	}

	if err := r.db.Model(account).
		Updates(map[string]interface{}{"is_active": false, "sync_enabled": false}).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to deactivate account")
		return
	}
	r.tokens.Invalidate(account.ID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// testConnection verifies the account credentials against the supplier
func (r *Router) testConnection(w http.ResponseWriter, req *http.Request) {
	account, ok := r.accountFromPath(w, req)
	if !ok {
		return
	}

	result, err := r.orch.TestConnection(req.Context(), account.ID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// tokenStatus reports whether a valid supplier token is cached, without
// ever exposing its value.
func (r *Router) tokenStatus(w http.ResponseWriter, req *http.Request) {
	account, ok := r.accountFromPath(w, req)
	if !ok {
		return
	}

	var tok models.SupplierToken
	err := r.db.
		Where("account_id = ?", account.ID).
		Order("issued_at DESC").
		First(&tok).Error
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"cached": false})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cached":    true,
		"valid":     tok.Valid(),
		"issuedAt":  tok.IssuedAt,
		"expiresAt": tok.ExpiresAt,
		"expiresIn": time.Until(tok.ExpiresAt).String(),
	})
}

// accountFromPath loads the account addressed by the {id} path variable
func (r *Router) accountFromPath(w http.ResponseWriter, req *http.Request) (*models.SupplierAccount, bool) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account id")
		return nil, false
	}

	var account models.SupplierAccount
	if err := r.db.First(&account, uint(id)).Error; err != nil {
		respondError(w, http.StatusNotFound, "Account not found")
		return nil, false
	}
	return &account, true
}
