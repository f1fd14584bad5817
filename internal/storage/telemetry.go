package storage

import (
	"context"
	"time"

	"github.com/vibranic/central/internal/models"
)

// TelemetryStorage defines operations for telemetry persistence.
// This is separate from the main Storage interface as telemetry has
// different access patterns (high-volume writes, time-series queries)
// and can be backed by ClickHouse instead of SQLite.
type TelemetryStorage interface {
	// Open initializes the telemetry storage connection.
	Open() error
	// Close closes the telemetry storage connection.
	Close() error
	// Migrate creates or updates the telemetry schema.
	Migrate() error
	// Ping checks the connection health.
	Ping(ctx context.Context) error

	// Repository accessors
	Events() EventRepository
	Metrics() MetricRepository
	Uptime() UptimeRepository
}

// EventRepository defines diagnostic event operations.
type EventRepository interface {
	// Insert stores a single diagnostic event.
	Insert(ctx context.Context, event *models.DiagnosticEvent) error

	// Query retrieves events matching the filter, newest first.
	Query(ctx context.Context, filter *EventFilter) ([]*models.DiagnosticEvent, error)

	// RecentByApp returns the most recent events for an app, newest first.
	RecentByApp(ctx context.Context, appID string, limit int) ([]*models.DiagnosticEvent, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter *EventFilter) (int64, error)

	// DeleteByApp removes all events for an application.
	DeleteByApp(ctx context.Context, appID string) error
}

// MetricRepository defines metric snapshot operations.
type MetricRepository interface {
	// InsertBatch stores multiple snapshots atomically.
	InsertBatch(ctx context.Context, snapshots []*models.MetricSnapshot) error

	// Query retrieves snapshots matching the filter, oldest first.
	Query(ctx context.Context, filter *MetricFilter) ([]*models.MetricSnapshot, error)

	// DeleteByApp removes all snapshots for an application.
	DeleteByApp(ctx context.Context, appID string) error
}

// UptimeRepository defines uptime record operations.
type UptimeRepository interface {
	// Insert stores a single uptime record.
	Insert(ctx context.Context, record *models.UptimeRecord) error

	// ListSince returns an app's records from the given time, oldest first.
	ListSince(ctx context.Context, appID string, since time.Time) ([]*models.UptimeRecord, error)

	// DeleteByApp removes all records for an application.
	DeleteByApp(ctx context.Context, appID string) error
}

// EventFilter defines query parameters for event retrieval.
type EventFilter struct {
	AppID    string
	Type     models.EventType
	Severity models.Severity

	// Since restricts results to events at or after this time.
	Since time.Time

	// Limit caps the number of returned events. Zero means the default.
	Limit int
}

// MetricFilter defines query parameters for metric retrieval.
type MetricFilter struct {
	AppID     string
	MetricKey string
	Since     time.Time
}
