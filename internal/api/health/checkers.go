package health

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteChecker checks SQLite database connectivity.
type SQLiteChecker struct {
	db *sql.DB
}

// NewSQLiteChecker creates a new SQLite health checker.
func NewSQLiteChecker(db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{db: db}
}

// Name returns the checker name.
func (c *SQLiteChecker) Name() string {
	return "sqlite"
}

// Check verifies the SQLite database is accessible.
func (c *SQLiteChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// Pinger interface for storage backends that support ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TelemetryChecker checks telemetry storage connectivity.
type TelemetryChecker struct {
	pinger Pinger
}

// NewTelemetryChecker creates a new telemetry storage health checker.
func NewTelemetryChecker(p Pinger) *TelemetryChecker {
	return &TelemetryChecker{pinger: p}
}

// Name returns the checker name.
func (c *TelemetryChecker) Name() string {
	return "telemetry"
}

// Check verifies the telemetry storage is accessible.
func (c *TelemetryChecker) Check(ctx context.Context) error {
	if c.pinger == nil {
		return fmt.Errorf("telemetry storage not configured")
	}
	return c.pinger.Ping(ctx)
}
