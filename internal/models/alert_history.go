package models

import "time"

// AlertHistory records when an alert rule was triggered.
type AlertHistory struct {
	ID          string         `json:"id"`
	AlertID     string         `json:"alertId"`
	AlertName   string         `json:"alertName"`
	AppID       string         `json:"appId"`
	Condition   AlertCondition `json:"condition"`
	Message     string         `json:"message"`
	TriggeredAt time.Time      `json:"triggeredAt"`
}
