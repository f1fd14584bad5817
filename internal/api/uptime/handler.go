// Package uptime provides the uptime summary endpoint.
package uptime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vibranic/central/internal/health"
	"github.com/vibranic/central/internal/storage"
)

// Response helpers
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// ranges maps the range query parameter to a lookback duration.
var ranges = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Handler handles uptime summary endpoints.
type Handler struct {
	storage      storage.Storage
	telemetry    storage.TelemetryStorage
	queryTimeout time.Duration
}

// NewHandler creates a new uptime handler.
func NewHandler(store storage.Storage, telemetry storage.TelemetryStorage, queryTimeout time.Duration) *Handler {
	return &Handler{storage: store, telemetry: telemetry, queryTimeout: queryTimeout}
}

// Get handles GET /api/v1/uptime/{appID}. The range parameter selects
// the lookback window (1h, 24h, 7d, 30d), defaulting to 24h.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rangeParam := r.URL.Query().Get("range")
	if rangeParam == "" {
		rangeParam = "24h"
	}
	lookback, ok := ranges[rangeParam]
	if !ok {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid range")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	appID := chi.URLParam(r, "appID")
	app, err := h.storage.Apps().GetByID(ctx, appID)
	if err != nil {
		log.Printf("[uptime] get app: %v", err)
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	if app == nil {
		jsonError(w, http.StatusNotFound, "NOT_FOUND", "Application not found")
		return
	}

	now := time.Now()
	records, err := h.telemetry.Uptime().ListSince(ctx, appID, now.Add(-lookback))
	if err != nil {
		log.Printf("[uptime] list records: %v", err)
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	jsonOK(w, health.Summarize(records, now))
}
