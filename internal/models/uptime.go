package models

import "time"

// UptimeStatus represents a derived application health state.
type UptimeStatus string

const (
	StatusHealthy UptimeStatus = "healthy"
	StatusWarning UptimeStatus = "warning"
	StatusDown    UptimeStatus = "down"
	StatusUnknown UptimeStatus = "unknown"
)

// UptimeRecord is a health sample derived from a single diagnostic event
// at ingestion time.
type UptimeRecord struct {
	ID        string       `json:"id"`
	AppID     string       `json:"appId"`
	Status    UptimeStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}
