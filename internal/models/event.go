package models

import (
	"time"
)

// EventType represents the category of a diagnostic event.
type EventType string

const (
	EventTypeError   EventType = "error"
	EventTypeWarning EventType = "warning"
	EventTypeInfo    EventType = "info"
	EventTypeDebug   EventType = "debug"
)

// Valid reports whether the event type is a known value.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeError, EventTypeWarning, EventTypeInfo, EventTypeDebug:
		return true
	}
	return false
}

// Severity represents how serious a diagnostic event is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether the severity is a known value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// DiagnosticEvent represents a single reported diagnostic event.
type DiagnosticEvent struct {
	ID         string         `json:"id"`
	AppID      string         `json:"appId"`
	Type       EventType      `json:"type"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	StackTrace string         `json:"stackTrace,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
