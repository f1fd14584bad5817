// Package exporter is the client library applications embed to report
// diagnostic events and metrics to a Vibranic Central hub. Events and
// metrics are buffered in bounded in-memory queues and flushed in the
// background on a size or interval trigger, with at-least-once delivery:
// a failed flush requeues its items, so duplicates are possible and the
// hub must tolerate them.
package exporter

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Defaults applied by New.
const (
	DefaultBatchSize      = 10
	DefaultFlushInterval  = 5 * time.Second
	DefaultMaxQueueSize   = 1000
	DefaultRequestTimeout = 10 * time.Second
)

// Event is a diagnostic event queued for delivery.
type Event struct {
	Type       string         `json:"type"`
	Severity   string         `json:"severity"`
	Message    string         `json:"message"`
	StackTrace string         `json:"stackTrace,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Metric is a metric snapshot queued for delivery.
type Metric struct {
	MetricKey string  `json:"metricKey"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
}

// Config contains exporter configuration.
type Config struct {
	Endpoint string // Hub base URL, e.g. "https://hub.example.com"
	APIKey   string // Ingestion API key for this application

	BatchSize      int           // Queue length that triggers a flush (default: 10)
	FlushInterval  time.Duration // Background flush period (default: 5s)
	MaxQueueSize   int           // Per-queue bound, drop-oldest beyond it (default: 1000)
	RequestTimeout time.Duration // Per-request transport timeout (default: 10s)

	Disabled bool // If true, all tracking calls are no-ops

	HTTPClient *http.Client // Optional custom client
	Verbose    bool
}

// Stats is a point-in-time snapshot of exporter state.
type Stats struct {
	PendingEvents  int
	PendingMetrics int
	DroppedEvents  uint64
	DroppedMetrics uint64
}

// Exporter buffers and delivers telemetry for one application. Create
// instances explicitly and pass them where needed; there is no package
// level singleton, so independent exporters never share state.
type Exporter struct {
	config Config
	client *http.Client

	events  *queue[*Event]
	metrics *queue[*Metric]

	// flushMu serializes flushes. The background loop and size-trigger
	// use TryLock: if a flush is already running they simply skip, and
	// the queue growth is picked up by the next cycle.
	flushMu sync.Mutex

	done    chan struct{}
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// New creates a new exporter and starts its background flush loop.
func New(cfg Config) (*Exporter, error) {
	if !cfg.Disabled {
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("endpoint is required")
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("API key is required")
		}
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}

	e := &Exporter{
		config:  cfg,
		client:  client,
		events:  newQueue[*Event](cfg.MaxQueueSize),
		metrics: newQueue[*Metric](cfg.MaxQueueSize),
		done:    make(chan struct{}),
	}

	if !cfg.Disabled {
		e.wg.Add(1)
		go e.loop()
	}

	return e, nil
}

// EventOption customizes a tracked event.
type EventOption func(*Event)

// WithDetails attaches structured details to the event.
func WithDetails(details map[string]any) EventOption {
	return func(e *Event) {
		e.Details = details
	}
}

// WithStackTrace attaches a stack trace to the event.
func WithStackTrace(trace string) EventOption {
	return func(e *Event) {
		e.StackTrace = trace
	}
}

// Track enqueues an event. It never blocks and never fails; when the
// queue is full the oldest event is dropped and counted in Stats.
// After Close, Track is a no-op.
func (e *Exporter) Track(event Event) {
	if e.config.Disabled || e.isClosed() {
		return
	}

	e.events.Push(&event)

	if e.events.Len() >= e.config.BatchSize {
		go e.tryFlush()
	}
}

// TrackError enqueues a high severity error event.
func (e *Exporter) TrackError(message string, opts ...EventOption) {
	e.track("error", "high", message, opts)
}

// TrackWarning enqueues a medium severity warning event.
func (e *Exporter) TrackWarning(message string, opts ...EventOption) {
	e.track("warning", "medium", message, opts)
}

// TrackInfo enqueues a low severity info event.
func (e *Exporter) TrackInfo(message string, opts ...EventOption) {
	e.track("info", "low", message, opts)
}

// TrackDebug enqueues a low severity debug event.
func (e *Exporter) TrackDebug(message string, opts ...EventOption) {
	e.track("debug", "low", message, opts)
}

func (e *Exporter) track(eventType, severity, message string, opts []EventOption) {
	event := Event{Type: eventType, Severity: severity, Message: message}
	for _, opt := range opts {
		opt(&event)
	}
	e.Track(event)
}

// RecordMetric enqueues a metric snapshot. Like Track, it never blocks
// and is a no-op after Close.
func (e *Exporter) RecordMetric(key string, value float64, unit string) {
	if e.config.Disabled || e.isClosed() {
		return
	}

	e.metrics.Push(&Metric{MetricKey: key, Value: value, Unit: unit})

	if e.metrics.Len() >= e.config.BatchSize {
		go e.tryFlush()
	}
}

// Stats returns a snapshot of queue state.
func (e *Exporter) Stats() Stats {
	return Stats{
		PendingEvents:  e.events.Len(),
		PendingMetrics: e.metrics.Len(),
		DroppedEvents:  e.events.Dropped(),
		DroppedMetrics: e.metrics.Dropped(),
	}
}

// Flush delivers everything currently queued, blocking until done or
// the context expires. Undelivered items are requeued.
func (e *Exporter) Flush(ctx context.Context) error {
	if e.config.Disabled {
		return nil
	}

	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	return e.flush(ctx)
}

// Close stops the background loop and attempts a final flush. Items
// that cannot be delivered before the context expires are lost.
func (e *Exporter) Close(ctx context.Context) error {
	if e.config.Disabled {
		return nil
	}

	e.closeMu.Lock()
	if e.closed {
		e.closeMu.Unlock()
		return nil
	}
	e.closed = true
	close(e.done)
	e.closeMu.Unlock()

	e.wg.Wait()
	return e.Flush(ctx)
}

func (e *Exporter) isClosed() bool {
	e.closeMu.Lock()
	defer e.closeMu.Unlock()
	return e.closed
}

// loop is the background flush timer. Ticks that find a flush already
// in progress are skipped; the next tick picks up the backlog.
func (e *Exporter) loop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.tryFlush()
		}
	}
}

// tryFlush runs a flush unless one is already in progress.
func (e *Exporter) tryFlush() {
	if !e.flushMu.TryLock() {
		return
	}
	defer e.flushMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.config.RequestTimeout*2)
	defer cancel()

	if err := e.flush(ctx); err != nil {
		e.logf("flush: %v", err)
	}
}

// flush swaps out both queues and attempts delivery. Events are
// delivered one at a time: on a transient failure the failed event and
// everything after it are requeued at the front, so already delivered
// events in the batch are not resent. Metrics go as one batch and are
// requeued whole on failure.
func (e *Exporter) flush(ctx context.Context) error {
	var firstErr error

	events := e.events.Swap()
	for i, event := range events {
		retryable, err := e.sendEvent(ctx, event)
		if err == nil {
			continue
		}
		if retryable {
			e.events.Requeue(events[i:])
			firstErr = err
			break
		}
		// Permanently rejected, drop it and count it.
		e.events.Drop(1)
		e.logf("event rejected: %v", err)
	}

	metrics := e.metrics.Swap()
	if len(metrics) > 0 {
		if err := e.sendMetrics(ctx, metrics); err != nil {
			e.metrics.Requeue(metrics)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (e *Exporter) logf(format string, args ...any) {
	if e.config.Verbose {
		log.Printf("[exporter] "+format, args...)
	}
}
