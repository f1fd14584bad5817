// Package apps provides admin endpoints for application management.
package apps

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vibranic/central/internal/health"
	"github.com/vibranic/central/internal/models"
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

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeInternalError    = "INTERNAL_ERROR"
)

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

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// AppResponse is an application enriched with derived health state.
type AppResponse struct {
	*models.App
	Status     models.UptimeStatus `json:"status"`
	EventCount int64               `json:"eventCount"`
	LastSeen   *time.Time          `json:"lastSeen,omitempty"`
}

// Handler handles application endpoints.
type Handler struct {
	storage      storage.Storage
	telemetry    storage.TelemetryStorage
	queryTimeout time.Duration
}

// NewHandler creates a new application handler.
func NewHandler(store storage.Storage, telemetry storage.TelemetryStorage, queryTimeout time.Duration) *Handler {
	return &Handler{storage: store, telemetry: telemetry, queryTimeout: queryTimeout}
}

func (h *Handler) queryCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.queryTimeout)
}

// Request types
type CreateRequest struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type UpdateRequest struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// List handles GET /api/v1/apps.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.queryCtx(r)
	defer cancel()

	apps, err := h.storage.Apps().List(ctx)
	if err != nil {
		log.Printf("[apps] list: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	out := make([]*AppResponse, 0, len(apps))
	for _, app := range apps {
		resp, err := h.withStatus(ctx, app)
		if err != nil {
			log.Printf("[apps] derive status for %s: %v", app.ID, err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
			return
		}
		out = append(out, resp)
	}

	jsonOK(w, out)
}

// Create handles POST /api/v1/apps.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Invalid JSON payload")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "name is required")
		return
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	app := models.NewApp(req.Name, req.URL, req.Description)
	if err := h.storage.Apps().Create(ctx, app); err != nil {
		log.Printf("[apps] create: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	jsonCreated(w, app)
}

// Get handles GET /api/v1/apps/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.queryCtx(r)
	defer cancel()

	app, err := h.storage.Apps().GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("[apps] get: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}
	if app == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Application not found")
		return
	}

	resp, err := h.withStatus(ctx, app)
	if err != nil {
		log.Printf("[apps] derive status for %s: %v", app.ID, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	jsonOK(w, resp)
}

// Update handles PUT /api/v1/apps/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Invalid JSON payload")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "name is required")
		return
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	app, err := h.storage.Apps().GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("[apps] get for update: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}
	if app == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Application not found")
		return
	}

	app.Name = req.Name
	app.URL = req.URL
	app.Description = req.Description
	app.UpdatedAt = time.Now()

	if err := h.storage.Apps().Update(ctx, app); err != nil {
		log.Printf("[apps] update: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	jsonOK(w, app)
}

// Delete handles DELETE /api/v1/apps/{id}. The app's telemetry is
// removed as well; telemetry deletion failures are logged but do not
// fail the request, since the app itself is already gone.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.queryCtx(r)
	defer cancel()

	id := chi.URLParam(r, "id")

	app, err := h.storage.Apps().GetByID(ctx, id)
	if err != nil {
		log.Printf("[apps] get for delete: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}
	if app == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Application not found")
		return
	}

	if err := h.storage.Apps().Delete(ctx, id); err != nil {
		log.Printf("[apps] delete: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	if err := h.telemetry.Events().DeleteByApp(ctx, id); err != nil {
		log.Printf("[apps] delete events for %s: %v", id, err)
	}
	if err := h.telemetry.Metrics().DeleteByApp(ctx, id); err != nil {
		log.Printf("[apps] delete metrics for %s: %v", id, err)
	}
	if err := h.telemetry.Uptime().DeleteByApp(ctx, id); err != nil {
		log.Printf("[apps] delete uptime records for %s: %v", id, err)
	}

	jsonNoContent(w)
}

// RegenerateKey handles POST /api/v1/apps/{id}/regenerate-key.
// The old key stops resolving immediately.
func (h *Handler) RegenerateKey(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.queryCtx(r)
	defer cancel()

	id := chi.URLParam(r, "id")

	app, err := h.storage.Apps().GetByID(ctx, id)
	if err != nil {
		log.Printf("[apps] get for key rotation: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}
	if app == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Application not found")
		return
	}

	key := models.NewAPIKey()
	if err := h.storage.Apps().UpdateAPIKey(ctx, id, key); err != nil {
		log.Printf("[apps] rotate key for %s: %v", id, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	jsonOK(w, map[string]string{"apiKey": key})
}

// withStatus enriches an app with its aggregate status, event count and
// last seen time.
func (h *Handler) withStatus(ctx context.Context, app *models.App) (*AppResponse, error) {
	recent, err := h.telemetry.Events().RecentByApp(ctx, app.ID, health.RecentWindow)
	if err != nil {
		return nil, err
	}

	count, err := h.telemetry.Events().Count(ctx, &storage.EventFilter{AppID: app.ID})
	if err != nil {
		return nil, err
	}

	resp := &AppResponse{
		App:        app,
		Status:     health.AggregateStatus(recent),
		EventCount: count,
	}
	if len(recent) > 0 {
		resp.LastSeen = &recent[0].Timestamp
	}
	return resp, nil
}
