// Package telemetry provides the ingestion and read endpoints for
// diagnostic events and metric snapshots. Unlike the admin endpoints,
// the wire format here is flat JSON without an envelope, matching what
// the exporter client speaks.
package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vibranic/central/internal/alerting"
	"github.com/vibranic/central/internal/api/middleware"
	"github.com/vibranic/central/internal/health"
	"github.com/vibranic/central/internal/metrics"
	"github.com/vibranic/central/internal/models"
	"github.com/vibranic/central/internal/storage"
)

// maxBodySize caps ingestion request bodies at 1 MiB.
const maxBodySize = 1 << 20

func jsonWrite(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonWrite(w, status, map[string]string{"error": message})
}

// Handler handles telemetry endpoints.
type Handler struct {
	telemetry    storage.TelemetryStorage
	evaluator    *alerting.Evaluator
	queryTimeout time.Duration
}

// NewHandler creates a new telemetry handler.
func NewHandler(telemetry storage.TelemetryStorage, evaluator *alerting.Evaluator, queryTimeout time.Duration) *Handler {
	return &Handler{
		telemetry:    telemetry,
		evaluator:    evaluator,
		queryTimeout: queryTimeout,
	}
}

func (h *Handler) queryCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.queryTimeout)
}

type eventRequest struct {
	Type       string         `json:"type"`
	Severity   string         `json:"severity"`
	Message    string         `json:"message"`
	StackTrace string         `json:"stackTrace"`
	Details    map[string]any `json:"details"`
}

// IngestEvent handles POST /api/v1/events.
// Persists the event, derives an uptime record from its severity, and
// runs alert evaluation. The three writes are sequential, not atomic:
// a failure mid-chain leaves the earlier writes in place and returns 500.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	app := middleware.GetApp(r.Context())
	if app == nil {
		jsonError(w, http.StatusUnauthorized, "Missing API key")
		return
	}

	var req eventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if msg := validateEventRequest(&req); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	event := &models.DiagnosticEvent{
		ID:         uuid.New().String(),
		AppID:      app.ID,
		Type:       models.EventType(req.Type),
		Severity:   models.Severity(req.Severity),
		Message:    req.Message,
		StackTrace: req.StackTrace,
		Details:    req.Details,
		UserAgent:  r.UserAgent(),
		IPAddress:  middleware.ClientIP(r),
		Timestamp:  time.Now(),
	}

	if err := h.telemetry.Events().Insert(ctx, event); err != nil {
		log.Printf("[ingest] insert event for %s: %v", app.ID, err)
		metrics.StorageErrors.WithLabelValues("event_insert", "telemetry").Inc()
		jsonError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	metrics.EventsIngested.WithLabelValues(req.Severity).Inc()

	status := health.StatusForSeverity(event.Severity)
	record := &models.UptimeRecord{
		ID:        uuid.New().String(),
		AppID:     app.ID,
		Status:    status,
		Timestamp: event.Timestamp,
	}
	if err := h.telemetry.Uptime().Insert(ctx, record); err != nil {
		log.Printf("[ingest] insert uptime record for %s: %v", app.ID, err)
		metrics.StorageErrors.WithLabelValues("uptime_insert", "telemetry").Inc()
		jsonError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	metrics.UptimeRecordsWritten.WithLabelValues(string(status)).Inc()

	if err := h.evaluator.HandleEvent(ctx, app, event); err != nil {
		log.Printf("[ingest] evaluate alerts for %s: %v", app.ID, err)
		jsonError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	jsonWrite(w, http.StatusOK, map[string]any{
		"success": true,
		"eventId": event.ID,
	})
}

// IngestMetrics handles POST /api/v1/metrics. The body is either a
// single metric object or an array of them; any invalid item rejects
// the whole batch.
func (h *Handler) IngestMetrics(w http.ResponseWriter, r *http.Request) {
	app := middleware.GetApp(r.Context())
	if app == nil {
		jsonError(w, http.StatusUnauthorized, "Missing API key")
		return
	}

	var raw json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&raw); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	items, msg := parseMetricPayload(raw)
	if msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	now := time.Now()
	snapshots := make([]*models.MetricSnapshot, 0, len(items))
	for _, item := range items {
		snapshots = append(snapshots, &models.MetricSnapshot{
			ID:        uuid.New().String(),
			AppID:     app.ID,
			MetricKey: item.key,
			Value:     item.value,
			Unit:      item.unit,
			Timestamp: now,
		})
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	if err := h.telemetry.Metrics().InsertBatch(ctx, snapshots); err != nil {
		log.Printf("[ingest] insert metrics for %s: %v", app.ID, err)
		metrics.StorageErrors.WithLabelValues("metric_insert", "telemetry").Inc()
		jsonError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	metrics.MetricsIngested.Add(float64(len(snapshots)))

	if err := h.evaluator.HandleMetrics(ctx, app, snapshots); err != nil {
		log.Printf("[ingest] evaluate metric alerts for %s: %v", app.ID, err)
		jsonError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	jsonWrite(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(snapshots),
	})
}

// ListEvents handles GET /api/v1/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := &storage.EventFilter{
		AppID: q.Get("appId"),
	}

	if t := q.Get("type"); t != "" {
		if !models.EventType(t).Valid() {
			jsonError(w, http.StatusBadRequest, "Invalid event type")
			return
		}
		filter.Type = models.EventType(t)
	}
	if s := q.Get("severity"); s != "" {
		if !models.Severity(s).Valid() {
			jsonError(w, http.StatusBadRequest, "Invalid severity")
			return
		}
		filter.Severity = models.Severity(s)
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = n
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	events, err := h.telemetry.Events().Query(ctx, filter)
	if err != nil {
		log.Printf("[ingest] query events: %v", err)
		metrics.StorageErrors.WithLabelValues("event_query", "telemetry").Inc()
		jsonError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if events == nil {
		events = []*models.DiagnosticEvent{}
	}

	jsonWrite(w, http.StatusOK, map[string]any{"events": events})
}

// metricPoint is one snapshot in a grouped metric read response.
type metricPoint struct {
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ListMetrics handles GET /api/v1/metrics. Snapshots are grouped by
// metric key, each group ordered oldest first.
func (h *Handler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	appID := q.Get("appId")
	if appID == "" {
		jsonError(w, http.StatusBadRequest, "appId is required")
		return
	}

	hours := 24
	if v := q.Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, "Invalid hours")
			return
		}
		hours = n
	}

	filter := &storage.MetricFilter{
		AppID:     appID,
		MetricKey: q.Get("metricKey"),
		Since:     time.Now().Add(-time.Duration(hours) * time.Hour),
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	snapshots, err := h.telemetry.Metrics().Query(ctx, filter)
	if err != nil {
		log.Printf("[ingest] query metrics: %v", err)
		metrics.StorageErrors.WithLabelValues("metric_query", "telemetry").Inc()
		jsonError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Query returns oldest first, so appending preserves group order.
	grouped := make(map[string][]metricPoint)
	for _, s := range snapshots {
		grouped[s.MetricKey] = append(grouped[s.MetricKey], metricPoint{
			Value:     s.Value,
			Unit:      s.Unit,
			Timestamp: s.Timestamp,
		})
	}

	jsonWrite(w, http.StatusOK, map[string]any{"metrics": grouped})
}
