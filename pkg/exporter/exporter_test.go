package exporter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// testHub records delivered payloads and serves configurable statuses.
type testHub struct {
	mu         sync.Mutex
	events     []Event
	metricReqs [][]Metric
	eventCode  int // 0 means 200
	metricCode int
}

func (h *testHub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.eventCode != 0 {
			w.WriteHeader(h.eventCode)
			return
		}
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.events = append(h.events, ev)
		w.Write([]byte(`{"success":true,"eventId":"e1"}`))
	})
	mux.HandleFunc("/api/v1/metrics", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.metricCode != 0 {
			w.WriteHeader(h.metricCode)
			return
		}
		var batch []Metric
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.metricReqs = append(h.metricReqs, batch)
		w.Write([]byte(`{"success":true}`))
	})
	return mux
}

func (h *testHub) eventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func (h *testHub) setEventCode(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.eventCode = code
}

func newTestExporter(t *testing.T, hub *testHub, cfg Config) *Exporter {
	t.Helper()
	srv := httptest.NewServer(hub.handler())
	t.Cleanup(srv.Close)

	cfg.Endpoint = srv.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "vib_testkey"
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = time.Hour // tests drive flushes explicitly unless stated
	}

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		e.Close(ctx)
	})
	return e
}

func TestFlush_DeliversEvents(t *testing.T) {
	hub := &testHub{}
	e := newTestExporter(t, hub, Config{})

	e.TrackError("db unreachable", WithStackTrace("main.go:42"), WithDetails(map[string]any{"host": "db1"}))
	e.TrackInfo("checkout rendered")

	if err := e.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if hub.eventCount() != 2 {
		t.Fatalf("delivered = %d, want 2", hub.eventCount())
	}
	first := hub.events[0]
	if first.Type != "error" || first.Severity != "high" {
		t.Errorf("first event = %+v, want error/high", first)
	}
	if first.StackTrace != "main.go:42" || first.Details["host"] != "db1" {
		t.Errorf("options not applied: %+v", first)
	}
	if hub.events[1].Severity != "low" {
		t.Errorf("info severity = %q, want low", hub.events[1].Severity)
	}

	stats := e.Stats()
	if stats.PendingEvents != 0 {
		t.Errorf("pending = %d, want 0", stats.PendingEvents)
	}
}

func TestTrack_BatchSizeTriggersFlush(t *testing.T) {
	hub := &testHub{}
	e := newTestExporter(t, hub, Config{BatchSize: 3})

	for i := 0; i < 3; i++ {
		e.TrackInfo("tick")
	}

	// The size-triggered flush is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for hub.eventCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.eventCount() != 3 {
		t.Fatalf("delivered = %d, want 3", hub.eventCount())
	}
}

func TestFlush_TransientFailureRequeues(t *testing.T) {
	hub := &testHub{eventCode: http.StatusInternalServerError}
	e := newTestExporter(t, hub, Config{})

	const batch = 4
	for i := 0; i < batch; i++ {
		e.TrackInfo("tick")
	}

	if err := e.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}

	// Nothing is lost: everything is pending again.
	if got := e.Stats().PendingEvents; got < batch {
		t.Errorf("pending = %d, want >= %d", got, batch)
	}

	// Recovery delivers the queued backlog.
	hub.setEventCode(0)
	if err := e.Flush(context.Background()); err != nil {
		t.Fatalf("Flush after recovery: %v", err)
	}
	if hub.eventCount() != batch {
		t.Errorf("delivered = %d, want %d", hub.eventCount(), batch)
	}
}

func TestFlush_PartialDelivery(t *testing.T) {
	hub := &testHub{}
	e := newTestExporter(t, hub, Config{})

	e.TrackInfo("first")
	e.TrackInfo("second")
	e.TrackInfo("third")

	// Accept the first delivery, fail everything after it.
	orig := hub.handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hub.eventCount() >= 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		orig.ServeHTTP(w, r)
	}))
	defer srv.Close()
	e.config.Endpoint = srv.URL

	if err := e.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}

	// The first event was delivered once and is not requeued; the
	// second and third are pending for retry.
	if hub.eventCount() != 1 {
		t.Errorf("delivered = %d, want 1", hub.eventCount())
	}
	if got := e.Stats().PendingEvents; got != 2 {
		t.Errorf("pending = %d, want 2", got)
	}
}

func TestFlush_PermanentRejectionDrops(t *testing.T) {
	hub := &testHub{eventCode: http.StatusBadRequest}
	e := newTestExporter(t, hub, Config{})

	e.TrackInfo("malformed somehow")

	if err := e.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := e.Stats().PendingEvents; got != 0 {
		t.Errorf("pending = %d, want 0 (rejected events are dropped)", got)
	}
	if got := e.Stats().DroppedEvents; got != 1 {
		t.Errorf("dropped = %d, want 1 (rejected events are counted)", got)
	}
}

func TestFlush_MetricsBatchRequeuedWhole(t *testing.T) {
	hub := &testHub{metricCode: http.StatusBadGateway}
	e := newTestExporter(t, hub, Config{})

	e.RecordMetric("cpu", 41, "%")
	e.RecordMetric("cpu", 42, "%")

	if err := e.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}
	if got := e.Stats().PendingMetrics; got != 2 {
		t.Errorf("pending metrics = %d, want 2", got)
	}

	hub.mu.Lock()
	hub.metricCode = 0
	hub.mu.Unlock()

	if err := e.Flush(context.Background()); err != nil {
		t.Fatalf("Flush after recovery: %v", err)
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.metricReqs) != 1 || len(hub.metricReqs[0]) != 2 {
		t.Errorf("metric requests = %+v, want one batch of 2", hub.metricReqs)
	}
}

func TestQueueBound_DropsOldestUnderFailure(t *testing.T) {
	// BatchSize above the push count keeps the size trigger quiet so the
	// counters are deterministic.
	hub := &testHub{eventCode: http.StatusInternalServerError}
	e := newTestExporter(t, hub, Config{MaxQueueSize: 5, BatchSize: 100})

	for i := 0; i < 20; i++ {
		e.TrackInfo("tick")
	}

	stats := e.Stats()
	if stats.PendingEvents != 5 {
		t.Errorf("pending = %d, want 5", stats.PendingEvents)
	}
	if stats.DroppedEvents != 15 {
		t.Errorf("dropped = %d, want 15", stats.DroppedEvents)
	}
}

func TestDisabled_NoOps(t *testing.T) {
	e, err := New(Config{Disabled: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.TrackError("ignored")
	e.RecordMetric("cpu", 1, "")

	if stats := e.Stats(); stats.PendingEvents != 0 || stats.PendingMetrics != 0 {
		t.Errorf("disabled exporter queued items: %+v", stats)
	}
	if err := e.Flush(context.Background()); err != nil {
		t.Errorf("Flush: %v", err)
	}
	if err := e.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestClose_FlushesAndStops(t *testing.T) {
	hub := &testHub{}
	srv := httptest.NewServer(hub.handler())
	defer srv.Close()

	e, err := New(Config{Endpoint: srv.URL, APIKey: "vib_testkey", FlushInterval: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.TrackInfo("last words")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if hub.eventCount() != 1 {
		t.Errorf("delivered = %d, want 1", hub.eventCount())
	}

	// Close is idempotent.
	if err := e.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestTrack_AfterCloseIsNoOp(t *testing.T) {
	hub := &testHub{}
	srv := httptest.NewServer(hub.handler())
	defer srv.Close()

	e, err := New(Config{Endpoint: srv.URL, APIKey: "vib_testkey", BatchSize: 2, FlushInterval: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Enough events to hit BatchSize if they were still accepted.
	e.TrackInfo("late")
	e.TrackInfo("later")
	e.RecordMetric("cpu", 1, "%")

	time.Sleep(50 * time.Millisecond)

	if hub.eventCount() != 0 {
		t.Errorf("delivered after Close = %d, want 0", hub.eventCount())
	}
	if stats := e.Stats(); stats.PendingEvents != 0 || stats.PendingMetrics != 0 {
		t.Errorf("closed exporter queued items: %+v", stats)
	}
}

func TestIntervalFlush(t *testing.T) {
	hub := &testHub{}
	srv := httptest.NewServer(hub.handler())
	defer srv.Close()

	e, err := New(Config{Endpoint: srv.URL, APIKey: "vib_testkey", FlushInterval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		e.Close(ctx)
	}()

	e.TrackInfo("tick")

	deadline := time.Now().Add(2 * time.Second)
	for hub.eventCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.eventCount() != 1 {
		t.Errorf("delivered = %d, want 1", hub.eventCount())
	}
}
