package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/vibranic/central/internal/models"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	// Addresses are the ClickHouse server addresses (host:port).
	Addresses []string

	// Database is the ClickHouse database name.
	Database string

	// Username for authentication.
	Username string

	// Password for authentication.
	Password string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// DialTimeout is the connection timeout.
	DialTimeout time.Duration

	// Compression enables LZ4 compression.
	Compression bool

	// RetentionDays is the TTL in days for telemetry retention.
	RetentionDays int
}

// ClickHouseTelemetryStorage implements TelemetryStorage for ClickHouse.
// Intended for deployments where SQLite cannot keep up with event volume.
type ClickHouseTelemetryStorage struct {
	config *ClickHouseConfig
	db     *sql.DB

	events  *clickhouseEventRepo
	metrics *clickhouseMetricRepo
	uptime  *clickhouseUptimeRepo
}

// NewClickHouseTelemetryStorage creates a new ClickHouse telemetry storage.
func NewClickHouseTelemetryStorage(config *ClickHouseConfig) *ClickHouseTelemetryStorage {
	// Apply defaults
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 5
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.RetentionDays == 0 {
		config.RetentionDays = 90
	}

	return &ClickHouseTelemetryStorage{config: config}
}

// Open initializes the ClickHouse connection.
func (s *ClickHouseTelemetryStorage) Open() error {
	opts := &clickhouse.Options{
		Addr: s.config.Addresses,
		Auth: clickhouse.Auth{
			Database: s.config.Database,
			Username: s.config.Username,
			Password: s.config.Password,
		},
		DialTimeout:  s.config.DialTimeout,
		MaxOpenConns: s.config.MaxOpenConns,
		MaxIdleConns: s.config.MaxIdleConns,
	}

	if s.config.Compression {
		opts.Compression = &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		}
	}

	db := clickhouse.OpenDB(opts)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.DialTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping clickhouse: %w", err)
	}

	s.db = db
	s.events = &clickhouseEventRepo{db: db}
	s.metrics = &clickhouseMetricRepo{db: db}
	s.uptime = &clickhouseUptimeRepo{db: db}
	return nil
}

// Close closes the database connection.
func (s *ClickHouseTelemetryStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the telemetry tables if they don't exist.
func (s *ClickHouseTelemetryStorage) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tables := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS events (
				id UUID DEFAULT generateUUIDv4(),
				app_id String,
				type LowCardinality(String),
				severity LowCardinality(String),
				message String,
				stack_trace String DEFAULT '',
				details String DEFAULT '',
				user_agent String DEFAULT '',
				ip_address String DEFAULT '',
				timestamp DateTime64(3, 'UTC'),
				_date Date DEFAULT toDate(timestamp)
			)
			ENGINE = MergeTree()
			PARTITION BY toYYYYMM(_date)
			ORDER BY (app_id, timestamp, id)
			TTL _date + INTERVAL %d DAY DELETE
			SETTINGS index_granularity = 8192
		`, s.config.RetentionDays),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS metrics (
				id UUID DEFAULT generateUUIDv4(),
				app_id String,
				metric_key LowCardinality(String),
				value Float64,
				unit LowCardinality(String) DEFAULT '',
				timestamp DateTime64(3, 'UTC'),
				_date Date DEFAULT toDate(timestamp)
			)
			ENGINE = MergeTree()
			PARTITION BY toYYYYMM(_date)
			ORDER BY (app_id, metric_key, timestamp, id)
			TTL _date + INTERVAL %d DAY DELETE
			SETTINGS index_granularity = 8192
		`, s.config.RetentionDays),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS uptime_records (
				id UUID DEFAULT generateUUIDv4(),
				app_id String,
				status LowCardinality(String),
				timestamp DateTime64(3, 'UTC'),
				_date Date DEFAULT toDate(timestamp)
			)
			ENGINE = MergeTree()
			PARTITION BY toYYYYMM(_date)
			ORDER BY (app_id, timestamp, id)
			TTL _date + INTERVAL %d DAY DELETE
			SETTINGS index_granularity = 8192
		`, s.config.RetentionDays),
	}

	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create telemetry table: %w", err)
		}
	}

	// Idempotent in ClickHouse
	indexes := []string{
		"ALTER TABLE events ADD INDEX IF NOT EXISTS idx_message message TYPE tokenbf_v1(32768, 3, 0) GRANULARITY 4",
		"ALTER TABLE events ADD INDEX IF NOT EXISTS idx_severity severity TYPE bloom_filter(0.01) GRANULARITY 4",
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			// Index creation may not be supported in all ClickHouse versions
			fmt.Printf("warning: failed to create index: %v\n", err)
		}
	}

	return nil
}

// Ping checks the connection health.
func (s *ClickHouseTelemetryStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Events returns the event repository.
func (s *ClickHouseTelemetryStorage) Events() EventRepository {
	return s.events
}

// Metrics returns the metric repository.
func (s *ClickHouseTelemetryStorage) Metrics() MetricRepository {
	return s.metrics
}

// Uptime returns the uptime repository.
func (s *ClickHouseTelemetryStorage) Uptime() UptimeRepository {
	return s.uptime
}

// clickhouseEventRepo implements EventRepository for ClickHouse.
type clickhouseEventRepo struct {
	db *sql.DB
}

func (r *clickhouseEventRepo) Insert(ctx context.Context, event *models.DiagnosticEvent) error {
	var detailsJSON []byte
	if event.Details != nil {
		detailsJSON, _ = json.Marshal(event.Details)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (
			id, app_id, type, severity, message, stack_trace,
			details, user_agent, ip_address, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID, event.AppID, string(event.Type), string(event.Severity),
		event.Message, event.StackTrace, string(detailsJSON),
		event.UserAgent, event.IPAddress, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *clickhouseEventRepo) Query(ctx context.Context, filter *EventFilter) ([]*models.DiagnosticEvent, error) {
	query, args := buildCHEventQuery(filter, false)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanCHEvents(rows)
}

func (r *clickhouseEventRepo) RecentByApp(ctx context.Context, appID string, limit int) ([]*models.DiagnosticEvent, error) {
	return r.Query(ctx, &EventFilter{AppID: appID, Limit: limit})
}

func (r *clickhouseEventRepo) Count(ctx context.Context, filter *EventFilter) (int64, error) {
	query, args := buildCHEventQuery(filter, true)

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (r *clickhouseEventRepo) DeleteByApp(ctx context.Context, appID string) error {
	// Async mutation in ClickHouse
	if _, err := r.db.ExecContext(ctx, "ALTER TABLE events DELETE WHERE app_id = ?", appID); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

func buildCHEventQuery(filter *EventFilter, countOnly bool) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	if countOnly {
		sb.WriteString("SELECT count() FROM events")
	} else {
		sb.WriteString(`
			SELECT id, app_id, type, severity, message, stack_trace,
			       details, user_agent, ip_address, timestamp
			FROM events
		`)
	}

	var conditions []string
	if filter.AppID != "" {
		conditions = append(conditions, "app_id = ?")
		args = append(args, filter.AppID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since)
	}

	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	if countOnly {
		return sb.String(), args
	}

	sb.WriteString(" ORDER BY timestamp DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))

	return sb.String(), args
}

func scanCHEvents(rows *sql.Rows) ([]*models.DiagnosticEvent, error) {
	var events []*models.DiagnosticEvent
	for rows.Next() {
		e := &models.DiagnosticEvent{}
		var eventType, severity, detailsJSON string

		err := rows.Scan(
			&e.ID, &e.AppID, &eventType, &severity, &e.Message, &e.StackTrace,
			&detailsJSON, &e.UserAgent, &e.IPAddress, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		e.Type = models.EventType(eventType)
		e.Severity = models.Severity(severity)
		if detailsJSON != "" {
			json.Unmarshal([]byte(detailsJSON), &e.Details)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// clickhouseMetricRepo implements MetricRepository for ClickHouse.
type clickhouseMetricRepo struct {
	db *sql.DB
}

func (r *clickhouseMetricRepo) InsertBatch(ctx context.Context, snapshots []*models.MetricSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metrics (id, app_id, metric_key, value, unit, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range snapshots {
		_, err := stmt.ExecContext(ctx, m.ID, m.AppID, m.MetricKey, m.Value, m.Unit, m.Timestamp)
		if err != nil {
			return fmt.Errorf("exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *clickhouseMetricRepo) Query(ctx context.Context, filter *MetricFilter) ([]*models.MetricSnapshot, error) {
	conditions := []string{"app_id = ?"}
	args := []interface{}{filter.AppID}

	if filter.MetricKey != "" {
		conditions = append(conditions, "metric_key = ?")
		args = append(args, filter.MetricKey)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since)
	}

	query := `
		SELECT id, app_id, metric_key, value, unit, timestamp
		FROM metrics WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.MetricSnapshot
	for rows.Next() {
		m := &models.MetricSnapshot{}
		if err := rows.Scan(&m.ID, &m.AppID, &m.MetricKey, &m.Value, &m.Unit, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		snapshots = append(snapshots, m)
	}
	return snapshots, rows.Err()
}

func (r *clickhouseMetricRepo) DeleteByApp(ctx context.Context, appID string) error {
	if _, err := r.db.ExecContext(ctx, "ALTER TABLE metrics DELETE WHERE app_id = ?", appID); err != nil {
		return fmt.Errorf("delete metrics: %w", err)
	}
	return nil
}

// clickhouseUptimeRepo implements UptimeRepository for ClickHouse.
type clickhouseUptimeRepo struct {
	db *sql.DB
}

func (r *clickhouseUptimeRepo) Insert(ctx context.Context, record *models.UptimeRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO uptime_records (id, app_id, status, timestamp)
		VALUES (?, ?, ?, ?)
	`, record.ID, record.AppID, string(record.Status), record.Timestamp)
	if err != nil {
		return fmt.Errorf("insert uptime record: %w", err)
	}
	return nil
}

func (r *clickhouseUptimeRepo) ListSince(ctx context.Context, appID string, since time.Time) ([]*models.UptimeRecord, error) {
	query := `
		SELECT id, app_id, status, timestamp
		FROM uptime_records WHERE app_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC
	`
	rows, err := r.db.QueryContext(ctx, query, appID, since)
	if err != nil {
		return nil, fmt.Errorf("query uptime records: %w", err)
	}
	defer rows.Close()

	var records []*models.UptimeRecord
	for rows.Next() {
		rec := &models.UptimeRecord{}
		var status string
		if err := rows.Scan(&rec.ID, &rec.AppID, &status, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan uptime record: %w", err)
		}
		rec.Status = models.UptimeStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *clickhouseUptimeRepo) DeleteByApp(ctx context.Context, appID string) error {
	if _, err := r.db.ExecContext(ctx, "ALTER TABLE uptime_records DELETE WHERE app_id = ?", appID); err != nil {
		return fmt.Errorf("delete uptime records: %w", err)
	}
	return nil
}
