// Package health derives application health states from telemetry.
package health

import (
	"time"

	"github.com/vibranic/central/internal/models"
)

// RecentWindow is the number of most recent events considered when
// aggregating an application's current status.
const RecentWindow = 5

// hourlyBuckets is the number of hourly buckets reported in a summary.
const hourlyBuckets = 24

// StatusForSeverity derives the per-event health sample written at
// ingestion time. Each diagnostic event produces exactly one sample.
func StatusForSeverity(severity models.Severity) models.UptimeStatus {
	switch severity {
	case models.SeverityHigh:
		return models.StatusDown
	case models.SeverityMedium:
		return models.StatusWarning
	default:
		return models.StatusHealthy
	}
}

// AggregateStatus derives the read-time status of an application from its
// most recent events, newest first. Any high severity event makes the app
// down, otherwise any medium severity event makes it warning. An app with
// no events is healthy.
func AggregateStatus(events []*models.DiagnosticEvent) models.UptimeStatus {
	status := models.StatusHealthy
	for _, e := range events {
		switch e.Severity {
		case models.SeverityHigh:
			return models.StatusDown
		case models.SeverityMedium:
			status = models.StatusWarning
		}
	}
	return status
}

// HourBucket is the worst status observed during one hour.
type HourBucket struct {
	Hour   time.Time           `json:"hour"`
	Status models.UptimeStatus `json:"status"`
}

// Summary describes uptime over a time window.
type Summary struct {
	UptimePercentage float64             `json:"uptimePercentage"`
	TotalRecords     int                 `json:"totalRecords"`
	CurrentStatus    models.UptimeStatus `json:"currentStatus"`
	HourlyStatus     []HourBucket        `json:"hourlyStatus"`
}

// Summarize computes the uptime percentage over all records in the window
// and the worst status per hour for the last 24 hours ending at to.
// Hours with no samples are unknown.
func Summarize(records []*models.UptimeRecord, to time.Time) Summary {
	s := Summary{CurrentStatus: models.StatusUnknown}

	healthy := 0
	for _, r := range records {
		if r.Status == models.StatusHealthy {
			healthy++
		}
	}
	s.TotalRecords = len(records)
	if len(records) > 0 {
		s.UptimePercentage = float64(healthy) / float64(len(records)) * 100
	}

	end := to.Truncate(time.Hour)
	byHour := make(map[time.Time]models.UptimeStatus)
	var latest *models.UptimeRecord
	for _, r := range records {
		hour := r.Timestamp.Truncate(time.Hour)
		byHour[hour] = worseStatus(byHour[hour], r.Status)
		if latest == nil || r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	if latest != nil {
		s.CurrentStatus = latest.Status
	}

	for i := hourlyBuckets - 1; i >= 0; i-- {
		hour := end.Add(-time.Duration(i) * time.Hour)
		status, ok := byHour[hour]
		if !ok {
			status = models.StatusUnknown
		}
		s.HourlyStatus = append(s.HourlyStatus, HourBucket{Hour: hour, Status: status})
	}

	return s
}

// worseStatus returns the worse of two statuses, where down > warning >
// healthy > unknown.
func worseStatus(a, b models.UptimeStatus) models.UptimeStatus {
	if statusRank(a) >= statusRank(b) {
		return a
	}
	return b
}

func statusRank(s models.UptimeStatus) int {
	switch s {
	case models.StatusDown:
		return 3
	case models.StatusWarning:
		return 2
	case models.StatusHealthy:
		return 1
	default:
		return 0
	}
}
