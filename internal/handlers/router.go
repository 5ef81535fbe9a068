package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sellerbridge/sellerbridge/internal/apperrors"
	"github.com/sellerbridge/sellerbridge/internal/config"
	"github.com/sellerbridge/sellerbridge/internal/database"
	"github.com/sellerbridge/sellerbridge/internal/middleware"
	"github.com/sellerbridge/sellerbridge/internal/orchestrator"
	"github.com/sellerbridge/sellerbridge/internal/orders"
	"github.com/sellerbridge/sellerbridge/internal/tasks"
	"github.com/sellerbridge/sellerbridge/internal/token"
	"github.com/sellerbridge/sellerbridge/internal/websocket"
)

// Router wraps the mux router and the service dependencies
type Router struct {
	*mux.Router
	db      *database.DB
	cfg     *config.Config
	hub     *websocket.Hub
	tracker *tasks.Tracker
	orch    *orchestrator.Orchestrator
	relay   *orders.Relay
	tokens  *token.Store
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *database.DB, cfg *config.Config, hub *websocket.Hub, tracker *tasks.Tracker, orch *orchestrator.Orchestrator, relay *orders.Relay, tokens *token.Store) *Router {
	r := &Router{
		Router:  mux.NewRouter(),
		db:      db,
		cfg:     cfg,
		hub:     hub,
		tracker: tracker,
		orch:    orch,
		relay:   relay,
		tokens:  tokens,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")

	// Dashboard notification stream
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWs(hub, w, req)
	})

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	// Dashboard routes
	api.HandleFunc("/dashboard/stats", r.dashboardStats).Methods("GET")

	// Supplier account routes
	api.HandleFunc("/accounts", r.listAccounts).Methods("GET")
	api.HandleFunc("/accounts", r.createAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}", r.getAccount).Methods("GET")
	api.HandleFunc("/accounts/{id}", r.updateAccount).Methods("PUT")
	api.HandleFunc("/accounts/{id}", r.deleteAccount).Methods("DELETE")
	api.HandleFunc("/accounts/{id}/test-connection", r.testConnection).Methods("POST")
	api.HandleFunc("/accounts/{id}/token", r.tokenStatus).Methods("GET")

	// Product catalog routes
	api.HandleFunc("/products", r.listProducts).Methods("GET")
	api.HandleFunc("/products/{id}", r.getProduct).Methods("GET")

	// Order routes
	api.HandleFunc("/orders", r.listOrders).Methods("GET")
	api.HandleFunc("/orders/{id}", r.getOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/cancel", r.cancelOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/packing-slip", r.packingSlip).Methods("GET")

	// Sync routes
	api.HandleFunc("/sync/ingest", r.submitIngest).Methods("POST")
	api.HandleFunc("/sync/collection", r.submitCollection).Methods("POST")
	api.HandleFunc("/sync/price-update", r.submitPriceUpdate).Methods("POST")
	api.HandleFunc("/sync/history", r.syncHistory).Methods("GET")

	// Task routes
	api.HandleFunc("/tasks", r.listTasks).Methods("GET")
	api.HandleFunc("/tasks/cleanup", r.cleanupTasks).Methods("POST")
	api.HandleFunc("/tasks/{id}", r.getTask).Methods("GET")
	api.HandleFunc("/tasks/{id}/cancel", r.cancelTask).Methods("POST")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"ws_clients": r.hub.ClientCount(),
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondAppError maps a service error onto an HTTP status plus its
// stable reason code.
func respondAppError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.CodeValidation, apperrors.CodeMarginBelowFloor:
		status = http.StatusBadRequest
	case apperrors.CodeAuthFailed:
		status = http.StatusUnauthorized
	case apperrors.CodeConflictState:
		status = http.StatusConflict
	case apperrors.CodeSupplierDown, apperrors.CodeMarketDown:
		status = http.StatusBadGateway
	case apperrors.CodeTimeout:
		status = http.StatusGatewayTimeout
	}
	respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  code,
	})
}
