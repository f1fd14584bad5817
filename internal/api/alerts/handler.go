// Package alerts provides admin endpoints for alert rule management
// and triggered alert history.
package alerts

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vibranic/central/internal/alerting"
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
	errCodeConflict         = "CONFLICT"
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

// HistoryListResponse wraps a page of alert history.
type HistoryListResponse struct {
	Items  []*models.AlertHistory `json:"items"`
	Total  int64                  `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Handler handles alert rule endpoints.
type Handler struct {
	storage      storage.Storage
	queryTimeout time.Duration
}

// NewHandler creates a new alert handler.
func NewHandler(store storage.Storage, queryTimeout time.Duration) *Handler {
	return &Handler{storage: store, queryTimeout: queryTimeout}
}

func (h *Handler) queryCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.queryTimeout)
}

// Request types
type CreateRequest struct {
	Name      string         `json:"name"`
	AppID     string         `json:"appId"`
	Condition string         `json:"condition"`
	Params    map[string]any `json:"params"`
	Severity  string         `json:"severity"`
	Enabled   *bool          `json:"enabled"`
}

type UpdateRequest struct {
	Name      string         `json:"name"`
	AppID     string         `json:"appId"`
	Condition string         `json:"condition"`
	Params    map[string]any `json:"params"`
	Severity  string         `json:"severity"`
	Enabled   bool           `json:"enabled"`
}

// validateRule checks the rule fields shared by create and update.
func validateRule(name, condition string, params map[string]any) string {
	if name == "" {
		return "name is required"
	}
	cond := models.AlertCondition(condition)
	if !cond.Valid() {
		return "Invalid condition"
	}
	if cond == models.ConditionMetricThreshold {
		data, err := json.Marshal(params)
		if err != nil {
			return "Invalid params"
		}
		var tp alerting.ThresholdParams
		if err := json.Unmarshal(data, &tp); err != nil {
			return "Invalid params"
		}
		if err := tp.Validate(); err != nil {
			return err.Error()
		}
	}
	return ""
}

// List handles GET /api/v1/alerts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.queryCtx(r)
	defer cancel()

	rules, err := h.storage.Alerts().List(ctx)
	if err != nil {
		log.Printf("[alerts] list: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	jsonOK(w, rules)
}

// Create handles POST /api/v1/alerts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Invalid JSON payload")
		return
	}
	if msg := validateRule(req.Name, req.Condition, req.Params); msg != "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, msg)
		return
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	existing, err := h.storage.Alerts().GetByName(ctx, req.Name)
	if err != nil {
		log.Printf("[alerts] check name: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, "Alert rule name already in use")
		return
	}

	rule := models.NewAlertRule(req.Name, models.AlertCondition(req.Condition), req.AppID)
	rule.Severity = req.Severity
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.Params != nil {
		if err := rule.SetParams(req.Params); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "Invalid params")
			return
		}
	}

	if err := h.storage.Alerts().Create(ctx, rule); err != nil {
		log.Printf("[alerts] create: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	jsonCreated(w, rule)
}

// Get handles GET /api/v1/alerts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.queryCtx(r)
	defer cancel()

	rule, err := h.storage.Alerts().GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("[alerts] get: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}
	if rule == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Alert rule not found")
		return
	}

	jsonOK(w, rule)
}

// Update handles PUT /api/v1/alerts/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Invalid JSON payload")
		return
	}
	if msg := validateRule(req.Name, req.Condition, req.Params); msg != "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, msg)
		return
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	rule, err := h.storage.Alerts().GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("[alerts] get for update: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}
	if rule == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Alert rule not found")
		return
	}

	rule.Name = req.Name
	rule.AppID = req.AppID
	rule.Condition = models.AlertCondition(req.Condition)
	rule.Severity = req.Severity
	rule.Enabled = req.Enabled
	rule.Params = ""
	if req.Params != nil {
		if err := rule.SetParams(req.Params); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "Invalid params")
			return
		}
	}
	rule.UpdatedAt = time.Now()

	if err := h.storage.Alerts().Update(ctx, rule); err != nil {
		log.Printf("[alerts] update: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	jsonOK(w, rule)
}

// Delete handles DELETE /api/v1/alerts/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.queryCtx(r)
	defer cancel()

	rule, err := h.storage.Alerts().GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("[alerts] get for delete: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}
	if rule == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Alert rule not found")
		return
	}

	if err := h.storage.Alerts().Delete(ctx, rule.ID); err != nil {
		log.Printf("[alerts] delete: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	jsonNoContent(w)
}

// History handles GET /api/v1/alerts/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultHistoryLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Invalid offset")
			return
		}
		offset = n
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	var (
		items []*models.AlertHistory
		total int64
		err   error
	)
	if appID := q.Get("appId"); appID != "" {
		items, total, err = h.storage.AlertHistory().ListByApp(ctx, appID, limit, offset)
	} else {
		items, total, err = h.storage.AlertHistory().List(ctx, limit, offset)
	}
	if err != nil {
		log.Printf("[alerts] list history: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}
	if items == nil {
		items = []*models.AlertHistory{}
	}

	jsonOK(w, HistoryListResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}
