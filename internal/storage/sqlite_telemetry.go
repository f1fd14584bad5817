package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vibranic/central/internal/models"
)

// defaultEventLimit caps event queries when no limit is given.
const defaultEventLimit = 50

// maxEventLimit is the hard cap on event query size.
const maxEventLimit = 1000

// telemetryMigrations holds the telemetry database migrations in order.
var telemetryMigrations = []Migration{
	{
		Version: 1,
		Name:    "telemetry_schema",
		Up: `
			-- Diagnostic events table
			CREATE TABLE IF NOT EXISTS events (
				id TEXT PRIMARY KEY,
				app_id TEXT NOT NULL,
				type TEXT NOT NULL,
				severity TEXT NOT NULL,
				message TEXT NOT NULL,
				stack_trace TEXT,
				details_json TEXT,
				user_agent TEXT,
				ip_address TEXT,
				timestamp DATETIME NOT NULL
			);

			-- Metric snapshots table
			CREATE TABLE IF NOT EXISTS metrics (
				id TEXT PRIMARY KEY,
				app_id TEXT NOT NULL,
				metric_key TEXT NOT NULL,
				value REAL NOT NULL,
				unit TEXT,
				timestamp DATETIME NOT NULL
			);

			-- Uptime records table
			CREATE TABLE IF NOT EXISTS uptime_records (
				id TEXT PRIMARY KEY,
				app_id TEXT NOT NULL,
				status TEXT NOT NULL,
				timestamp DATETIME NOT NULL
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_events_app_ts ON events(app_id, timestamp);
			CREATE INDEX IF NOT EXISTS idx_events_ts ON events(timestamp);
			CREATE INDEX IF NOT EXISTS idx_metrics_app_key_ts ON metrics(app_id, metric_key, timestamp);
			CREATE INDEX IF NOT EXISTS idx_uptime_app_ts ON uptime_records(app_id, timestamp);
		`,
	},
}

// SQLiteTelemetryStorage implements TelemetryStorage using SQLite.
// It is the default backend for single-node deployments.
type SQLiteTelemetryStorage struct {
	path string
	db   *sql.DB

	events  *sqliteEventRepo
	metrics *sqliteMetricRepo
	uptime  *sqliteUptimeRepo
}

// NewSQLiteTelemetryStorage creates a new SQLite telemetry storage.
func NewSQLiteTelemetryStorage(path string) *SQLiteTelemetryStorage {
	return &SQLiteTelemetryStorage{path: path}
}

// Open initializes the database connection.
func (s *SQLiteTelemetryStorage) Open() error {
	ctx := context.Background()

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open telemetry database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping telemetry database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	s.db = db

	s.events = &sqliteEventRepo{db: db}
	s.metrics = &sqliteMetricRepo{db: db}
	s.uptime = &sqliteUptimeRepo{db: db}

	return nil
}

// Close closes the database connection.
func (s *SQLiteTelemetryStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate runs telemetry schema migrations.
func (s *SQLiteTelemetryStorage) Migrate() error {
	return runMigrations(s.db, telemetryMigrations)
}

// Ping checks the connection health.
func (s *SQLiteTelemetryStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Events returns the event repository.
func (s *SQLiteTelemetryStorage) Events() EventRepository {
	return s.events
}

// Metrics returns the metric repository.
func (s *SQLiteTelemetryStorage) Metrics() MetricRepository {
	return s.metrics
}

// Uptime returns the uptime repository.
func (s *SQLiteTelemetryStorage) Uptime() UptimeRepository {
	return s.uptime
}

type sqliteEventRepo struct {
	db *sql.DB
}

func (r *sqliteEventRepo) Insert(ctx context.Context, event *models.DiagnosticEvent) error {
	var detailsJSON sql.NullString
	if event.Details != nil {
		data, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO events (id, app_id, type, severity, message, stack_trace,
			details_json, user_agent, ip_address, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.AppID, event.Type, event.Severity, event.Message,
		nullString(event.StackTrace), detailsJSON,
		nullString(event.UserAgent), nullString(event.IPAddress),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *sqliteEventRepo) Query(ctx context.Context, filter *EventFilter) ([]*models.DiagnosticEvent, error) {
	where, args := buildEventWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	query := `
		SELECT id, app_id, type, severity, message, stack_trace,
			details_json, user_agent, ip_address, timestamp
		FROM events` + where + ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	return r.queryEvents(ctx, query, args...)
}

func (r *sqliteEventRepo) RecentByApp(ctx context.Context, appID string, limit int) ([]*models.DiagnosticEvent, error) {
	query := `
		SELECT id, app_id, type, severity, message, stack_trace,
			details_json, user_agent, ip_address, timestamp
		FROM events WHERE app_id = ? ORDER BY timestamp DESC LIMIT ?
	`
	return r.queryEvents(ctx, query, appID, limit)
}

func (r *sqliteEventRepo) Count(ctx context.Context, filter *EventFilter) (int64, error) {
	where, args := buildEventWhere(filter)

	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (r *sqliteEventRepo) DeleteByApp(ctx context.Context, appID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE app_id = ?", appID); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

func buildEventWhere(filter *EventFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.AppID != "" {
		conditions = append(conditions, "app_id = ?")
		args = append(args, filter.AppID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, filter.Severity)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *sqliteEventRepo) queryEvents(ctx context.Context, query string, args ...interface{}) ([]*models.DiagnosticEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*models.DiagnosticEvent
	for rows.Next() {
		e := &models.DiagnosticEvent{}
		var stackTrace, detailsJSON, userAgent, ipAddress sql.NullString

		err := rows.Scan(
			&e.ID, &e.AppID, &e.Type, &e.Severity, &e.Message, &stackTrace,
			&detailsJSON, &userAgent, &ipAddress, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		e.StackTrace = stackTrace.String
		e.UserAgent = userAgent.String
		e.IPAddress = ipAddress.String
		if detailsJSON.Valid {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type sqliteMetricRepo struct {
	db *sql.DB
}

func (r *sqliteMetricRepo) InsertBatch(ctx context.Context, snapshots []*models.MetricSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metrics (id, app_id, metric_key, value, unit, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range snapshots {
		_, err := stmt.ExecContext(ctx, m.ID, m.AppID, m.MetricKey, m.Value, nullString(m.Unit), m.Timestamp)
		if err != nil {
			return fmt.Errorf("insert metric: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit metrics: %w", err)
	}
	return nil
}

func (r *sqliteMetricRepo) Query(ctx context.Context, filter *MetricFilter) ([]*models.MetricSnapshot, error) {
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
		var unit sql.NullString
		if err := rows.Scan(&m.ID, &m.AppID, &m.MetricKey, &m.Value, &unit, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.Unit = unit.String
		snapshots = append(snapshots, m)
	}
	return snapshots, rows.Err()
}

func (r *sqliteMetricRepo) DeleteByApp(ctx context.Context, appID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM metrics WHERE app_id = ?", appID); err != nil {
		return fmt.Errorf("delete metrics: %w", err)
	}
	return nil
}

type sqliteUptimeRepo struct {
	db *sql.DB
}

func (r *sqliteUptimeRepo) Insert(ctx context.Context, record *models.UptimeRecord) error {
	query := `
		INSERT INTO uptime_records (id, app_id, status, timestamp)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, record.ID, record.AppID, record.Status, record.Timestamp)
	if err != nil {
		return fmt.Errorf("insert uptime record: %w", err)
	}
	return nil
}

func (r *sqliteUptimeRepo) ListSince(ctx context.Context, appID string, since time.Time) ([]*models.UptimeRecord, error) {
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
		if err := rows.Scan(&rec.ID, &rec.AppID, &rec.Status, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan uptime record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *sqliteUptimeRepo) DeleteByApp(ctx context.Context, appID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM uptime_records WHERE app_id = ?", appID); err != nil {
		return fmt.Errorf("delete uptime records: %w", err)
	}
	return nil
}
