package models

import "time"

// MetricSnapshot represents a single point-in-time metric value.
type MetricSnapshot struct {
	ID        string    `json:"id"`
	AppID     string    `json:"appId"`
	MetricKey string    `json:"metricKey"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
