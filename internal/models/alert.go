package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AlertCondition represents the trigger condition of an alert rule.
type AlertCondition string

const (
	ConditionHighSeverity    AlertCondition = "high_severity"
	ConditionAnyError        AlertCondition = "any_error"
	ConditionAppDown         AlertCondition = "app_down"
	ConditionMetricThreshold AlertCondition = "metric_threshold"
)

// Valid reports whether the condition is a known value.
func (c AlertCondition) Valid() bool {
	switch c {
	case ConditionHighSeverity, ConditionAnyError, ConditionAppDown, ConditionMetricThreshold:
		return true
	}
	return false
}

// AlertRule represents a persistent alert configuration. An empty AppID
// means the rule applies to every application.
type AlertRule struct {
	ID        string         `json:"id"`
	AppID     string         `json:"appId,omitempty"`
	Name      string         `json:"name"`
	Condition AlertCondition `json:"condition"`
	Params    string         `json:"params,omitempty"`   // JSON-encoded condition parameters
	Severity  string         `json:"severity,omitempty"` // display label, not used in evaluation
	Enabled   bool           `json:"enabled"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// NewAlertRule creates a new AlertRule with initialized timestamps.
func NewAlertRule(name string, condition AlertCondition, appID string) *AlertRule {
	now := time.Now()
	return &AlertRule{
		ID:        uuid.New().String(),
		AppID:     appID,
		Name:      name,
		Condition: condition,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetParams sets the params from a structured value.
func (a *AlertRule) SetParams(params interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	a.Params = string(data)
	return nil
}

// GetParams unmarshals the params into the provided target.
func (a *AlertRule) GetParams(target interface{}) error {
	return json.Unmarshal([]byte(a.Params), target)
}
