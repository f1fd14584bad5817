// Package dashboard provides the aggregate overview endpoint.
package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vibranic/central/internal/models"
	"github.com/vibranic/central/internal/storage"
)

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

// Overview is the aggregate dashboard payload.
type Overview struct {
	Apps            int64 `json:"apps"`
	TotalEvents     int64 `json:"totalEvents"`
	Events24h       int64 `json:"events24h"`
	HighSeverity24h int64 `json:"highSeverity24h"`
	Alerts24h       int64 `json:"alerts24h"`
}

// Handler handles the dashboard endpoint.
type Handler struct {
	storage      storage.Storage
	telemetry    storage.TelemetryStorage
	queryTimeout time.Duration
}

// NewHandler creates a new dashboard handler.
func NewHandler(store storage.Storage, telemetry storage.TelemetryStorage, queryTimeout time.Duration) *Handler {
	return &Handler{storage: store, telemetry: telemetry, queryTimeout: queryTimeout}
}

// Get handles GET /api/v1/dashboard. The independent counts are
// gathered concurrently.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	dayAgo := time.Now().Add(-24 * time.Hour)

	var overview Overview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := h.storage.Apps().Count(gctx)
		overview.Apps = n
		return err
	})
	g.Go(func() error {
		n, err := h.telemetry.Events().Count(gctx, &storage.EventFilter{})
		overview.TotalEvents = n
		return err
	})
	g.Go(func() error {
		n, err := h.telemetry.Events().Count(gctx, &storage.EventFilter{Since: dayAgo})
		overview.Events24h = n
		return err
	})
	g.Go(func() error {
		n, err := h.telemetry.Events().Count(gctx, &storage.EventFilter{
			Severity: models.SeverityHigh,
			Since:    dayAgo,
		})
		overview.HighSeverity24h = n
		return err
	})
	g.Go(func() error {
		n, err := h.storage.AlertHistory().CountSince(gctx, dayAgo)
		overview.Alerts24h = n
		return err
	})

	if err := g.Wait(); err != nil {
		log.Printf("[dashboard] gather counts: %v", err)
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	jsonOK(w, overview)
}
