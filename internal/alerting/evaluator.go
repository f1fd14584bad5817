// Package alerting evaluates alert rules against incoming telemetry and
// records triggered alerts.
package alerting

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vibranic/central/internal/health"
	"github.com/vibranic/central/internal/metrics"
	"github.com/vibranic/central/internal/models"
	"github.com/vibranic/central/internal/storage"
)

// ThresholdParams are the parameters of a metric_threshold rule.
type ThresholdParams struct {
	MetricKey string  `json:"metric_key" yaml:"metric_key"`
	Operator  string  `json:"operator" yaml:"operator"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// Validate checks the threshold parameters.
func (p *ThresholdParams) Validate() error {
	if p.MetricKey == "" {
		return fmt.Errorf("metric_key is required")
	}
	switch p.Operator {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return fmt.Errorf("invalid operator: %q", p.Operator)
	}
	return nil
}

// Evaluator matches telemetry against enabled alert rules and appends
// alert history rows for every match. There is no deduplication or
// cooldown: N matching rules produce N rows, and repeated events
// retrigger the same rules.
type Evaluator struct {
	store     storage.Storage
	telemetry storage.TelemetryStorage
}

// NewEvaluator creates a new rule evaluator.
func NewEvaluator(store storage.Storage, telemetry storage.TelemetryStorage) *Evaluator {
	return &Evaluator{store: store, telemetry: telemetry}
}

// HandleEvent evaluates event-based rules for a freshly persisted event.
// Only high severity events trigger evaluation. History write failures
// are logged and do not stop remaining rules from being evaluated.
func (e *Evaluator) HandleEvent(ctx context.Context, app *models.App, event *models.DiagnosticEvent) error {
	if event.Severity != models.SeverityHigh {
		return nil
	}

	metrics.AlertsEvaluated.Inc()

	rules, err := e.store.Alerts().ListEnabledForApp(ctx, app.ID,
		models.ConditionHighSeverity, models.ConditionAnyError, models.ConditionAppDown)
	if err != nil {
		return fmt.Errorf("list alert rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	wentDown := false
	checkedDown := false

	for _, rule := range rules {
		switch rule.Condition {
		case models.ConditionHighSeverity, models.ConditionAnyError:
			e.fire(ctx, rule, app.ID, fmt.Sprintf("High severity event: %s", event.Message))
		case models.ConditionAppDown:
			if !checkedDown {
				down, err := e.transitionedDown(ctx, app.ID)
				if err != nil {
					log.Printf("[alerting] app_down check for %s: %v", app.ID, err)
					continue
				}
				wentDown = down
				checkedDown = true
			}
			if wentDown {
				e.fire(ctx, rule, app.ID, fmt.Sprintf("Application down: %s", event.Message))
			}
		}
	}

	return nil
}

// HandleMetrics evaluates metric_threshold rules against a batch of
// freshly persisted snapshots.
func (e *Evaluator) HandleMetrics(ctx context.Context, app *models.App, snapshots []*models.MetricSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	metrics.AlertsEvaluated.Inc()

	rules, err := e.store.Alerts().ListEnabledForApp(ctx, app.ID, models.ConditionMetricThreshold)
	if err != nil {
		return fmt.Errorf("list alert rules: %w", err)
	}

	for _, rule := range rules {
		var params ThresholdParams
		if err := rule.GetParams(&params); err != nil {
			log.Printf("[alerting] rule %s has invalid params: %v", rule.Name, err)
			continue
		}
		if err := params.Validate(); err != nil {
			log.Printf("[alerting] rule %s: %v", rule.Name, err)
			continue
		}

		for _, snap := range snapshots {
			if snap.MetricKey != params.MetricKey {
				continue
			}
			if compareThreshold(snap.Value, params.Threshold, params.Operator) {
				e.fire(ctx, rule, app.ID,
					fmt.Sprintf("Metric threshold exceeded: %s=%g (%s %g)",
						snap.MetricKey, snap.Value, params.Operator, params.Threshold))
			}
		}
	}

	return nil
}

// transitionedDown reports whether the app's aggregate status turned down
// with its newest event, i.e. it was not down before that event landed.
func (e *Evaluator) transitionedDown(ctx context.Context, appID string) (bool, error) {
	recent, err := e.telemetry.Events().RecentByApp(ctx, appID, health.RecentWindow+1)
	if err != nil {
		return false, fmt.Errorf("recent events: %w", err)
	}
	if len(recent) == 0 {
		return false, nil
	}

	window := recent
	if len(window) > health.RecentWindow {
		window = window[:health.RecentWindow]
	}
	current := health.AggregateStatus(window)
	if current != models.StatusDown {
		return false, nil
	}

	previous := recent[1:]
	return health.AggregateStatus(previous) != models.StatusDown, nil
}

func (e *Evaluator) fire(ctx context.Context, rule *models.AlertRule, appID, message string) {
	entry := &models.AlertHistory{
		ID:          uuid.New().String(),
		AlertID:     rule.ID,
		AlertName:   rule.Name,
		AppID:       appID,
		Condition:   rule.Condition,
		Message:     message,
		TriggeredAt: time.Now(),
	}

	if err := e.store.AlertHistory().Create(ctx, entry); err != nil {
		log.Printf("[alerting] record alert %s: %v", rule.Name, err)
		metrics.StorageErrors.WithLabelValues("alert_history_insert", "metadata").Inc()
		return
	}

	metrics.AlertsTriggered.WithLabelValues(string(rule.Condition)).Inc()
}

// floatEpsilon is the tolerance for float64 equality comparison,
// avoiding unreliable direct == on floating-point values.
const floatEpsilon = 1e-9

// compareThreshold compares a value against a threshold using the given operator.
func compareThreshold(value, threshold float64, operator string) bool {
	switch operator {
	case ">=":
		return value >= threshold
	case ">":
		return value > threshold
	case "<=":
		return value <= threshold
	case "<":
		return value < threshold
	case "==":
		diff := value - threshold
		if diff < 0 {
			diff = -diff
		}
		return diff < floatEpsilon
	case "!=":
		diff := value - threshold
		if diff < 0 {
			diff = -diff
		}
		return diff >= floatEpsilon
	default:
		return false
	}
}
