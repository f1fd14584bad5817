package alerting

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vibranic/central/internal/models"
	"github.com/vibranic/central/internal/storage"
)

// mockAlertRepo implements storage.AlertRepository over a static rule set.
type mockAlertRepo struct {
	rules   []*models.AlertRule
	listErr error
}

func (m *mockAlertRepo) Create(ctx context.Context, rule *models.AlertRule) error { return nil }
func (m *mockAlertRepo) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	return nil, nil
}
func (m *mockAlertRepo) GetByName(ctx context.Context, name string) (*models.AlertRule, error) {
	return nil, nil
}
func (m *mockAlertRepo) Update(ctx context.Context, rule *models.AlertRule) error { return nil }
func (m *mockAlertRepo) Delete(ctx context.Context, id string) error              { return nil }
func (m *mockAlertRepo) List(ctx context.Context) ([]*models.AlertRule, error) {
	return m.rules, nil
}
func (m *mockAlertRepo) SetEnabled(ctx context.Context, id string, enabled bool) error { return nil }

func (m *mockAlertRepo) ListEnabledForApp(ctx context.Context, appID string, conditions ...models.AlertCondition) ([]*models.AlertRule, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.AlertRule
	for _, r := range m.rules {
		if !r.Enabled {
			continue
		}
		if r.AppID != "" && r.AppID != appID {
			continue
		}
		matched := len(conditions) == 0
		for _, c := range conditions {
			if r.Condition == c {
				matched = true
				break
			}
		}
		if matched {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockHistoryRepo implements storage.AlertHistoryRepository.
type mockHistoryRepo struct {
	entries   []*models.AlertHistory
	createErr error
}

func (m *mockHistoryRepo) Create(ctx context.Context, h *models.AlertHistory) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, h)
	return nil
}
func (m *mockHistoryRepo) List(ctx context.Context, limit, offset int) ([]*models.AlertHistory, int64, error) {
	return m.entries, int64(len(m.entries)), nil
}
func (m *mockHistoryRepo) ListByApp(ctx context.Context, appID string, limit, offset int) ([]*models.AlertHistory, int64, error) {
	return m.entries, int64(len(m.entries)), nil
}
func (m *mockHistoryRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return int64(len(m.entries)), nil
}
func (m *mockHistoryRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// mockStore implements storage.Storage.
type mockStore struct {
	alerts  *mockAlertRepo
	history *mockHistoryRepo
}

func (m *mockStore) Open() error    { return nil }
func (m *mockStore) Close() error   { return nil }
func (m *mockStore) Migrate() error { return nil }
func (m *mockStore) Apps() storage.AppRepository {
	return nil
}
func (m *mockStore) Alerts() storage.AlertRepository              { return m.alerts }
func (m *mockStore) AlertHistory() storage.AlertHistoryRepository { return m.history }

// mockEventRepo implements storage.EventRepository over a static event list.
type mockEventRepo struct {
	events []*models.DiagnosticEvent
}

func (m *mockEventRepo) Insert(ctx context.Context, event *models.DiagnosticEvent) error { return nil }
func (m *mockEventRepo) Query(ctx context.Context, filter *storage.EventFilter) ([]*models.DiagnosticEvent, error) {
	return m.events, nil
}
func (m *mockEventRepo) RecentByApp(ctx context.Context, appID string, limit int) ([]*models.DiagnosticEvent, error) {
	if len(m.events) > limit {
		return m.events[:limit], nil
	}
	return m.events, nil
}
func (m *mockEventRepo) Count(ctx context.Context, filter *storage.EventFilter) (int64, error) {
	return int64(len(m.events)), nil
}
func (m *mockEventRepo) DeleteByApp(ctx context.Context, appID string) error { return nil }

// mockTelemetry implements storage.TelemetryStorage.
type mockTelemetry struct {
	events *mockEventRepo
}

func (m *mockTelemetry) Open() error                    { return nil }
func (m *mockTelemetry) Close() error                   { return nil }
func (m *mockTelemetry) Migrate() error                 { return nil }
func (m *mockTelemetry) Ping(ctx context.Context) error { return nil }
func (m *mockTelemetry) Events() storage.EventRepository {
	return m.events
}
func (m *mockTelemetry) Metrics() storage.MetricRepository { return nil }
func (m *mockTelemetry) Uptime() storage.UptimeRepository  { return nil }

func newTestEvaluator(rules []*models.AlertRule, recent []*models.DiagnosticEvent) (*Evaluator, *mockHistoryRepo) {
	history := &mockHistoryRepo{}
	store := &mockStore{
		alerts:  &mockAlertRepo{rules: rules},
		history: history,
	}
	telemetry := &mockTelemetry{events: &mockEventRepo{events: recent}}
	return NewEvaluator(store, telemetry), history
}

func highEvent(appID, message string) *models.DiagnosticEvent {
	return &models.DiagnosticEvent{
		ID:        "e1",
		AppID:     appID,
		Type:      models.EventTypeError,
		Severity:  models.SeverityHigh,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func TestHandleEvent_MatchingRulesFire(t *testing.T) {
	app := &models.App{ID: "app1", Name: "web"}

	scoped := models.NewAlertRule("web errors", models.ConditionHighSeverity, "app1")
	global := models.NewAlertRule("all errors", models.ConditionAnyError, "")
	foreign := models.NewAlertRule("other app", models.ConditionHighSeverity, "app2")
	disabled := models.NewAlertRule("muted", models.ConditionHighSeverity, "app1")
	disabled.Enabled = false

	ev, history := newTestEvaluator(
		[]*models.AlertRule{scoped, global, foreign, disabled},
		[]*models.DiagnosticEvent{highEvent("app1", "db timeout")},
	)

	if err := ev.HandleEvent(context.Background(), app, highEvent("app1", "db timeout")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(history.entries) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history.entries))
	}
	for _, h := range history.entries {
		if h.Message != "High severity event: db timeout" {
			t.Errorf("unexpected message: %s", h.Message)
		}
		if h.AppID != "app1" {
			t.Errorf("unexpected app id: %s", h.AppID)
		}
	}
}

func TestHandleEvent_NonHighSeverityIgnored(t *testing.T) {
	app := &models.App{ID: "app1"}
	rule := models.NewAlertRule("all errors", models.ConditionAnyError, "")
	ev, history := newTestEvaluator([]*models.AlertRule{rule}, nil)

	event := highEvent("app1", "slow response")
	event.Severity = models.SeverityMedium

	if err := ev.HandleEvent(context.Background(), app, event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(history.entries) != 0 {
		t.Errorf("expected no history rows, got %d", len(history.entries))
	}
}

func TestHandleEvent_RepeatedEventsRetrigger(t *testing.T) {
	app := &models.App{ID: "app1"}
	rule := models.NewAlertRule("errors", models.ConditionHighSeverity, "")
	ev, history := newTestEvaluator([]*models.AlertRule{rule},
		[]*models.DiagnosticEvent{highEvent("app1", "boom")})

	for i := 0; i < 3; i++ {
		if err := ev.HandleEvent(context.Background(), app, highEvent("app1", "boom")); err != nil {
			t.Fatalf("HandleEvent %d: %v", i, err)
		}
	}
	// No cooldown: every evaluation appends a row.
	if len(history.entries) != 3 {
		t.Errorf("expected 3 history rows, got %d", len(history.entries))
	}
}

func TestHandleEvent_AppDownTransition(t *testing.T) {
	app := &models.App{ID: "app1"}
	rule := models.NewAlertRule("down detector", models.ConditionAppDown, "")

	// Single high event: the app just transitioned to down.
	ev, history := newTestEvaluator([]*models.AlertRule{rule},
		[]*models.DiagnosticEvent{highEvent("app1", "crash loop")})

	if err := ev.HandleEvent(context.Background(), app, highEvent("app1", "crash loop")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(history.entries) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(history.entries))
	}
	if !strings.HasPrefix(history.entries[0].Message, "Application down:") {
		t.Errorf("unexpected message: %s", history.entries[0].Message)
	}
}

func TestHandleEvent_AppDownAlreadyDown(t *testing.T) {
	app := &models.App{ID: "app1"}
	rule := models.NewAlertRule("down detector", models.ConditionAppDown, "")

	// App was already down before the newest event.
	var recent []*models.DiagnosticEvent
	for i := 0; i < 6; i++ {
		recent = append(recent, highEvent("app1", fmt.Sprintf("crash %d", i)))
	}

	ev, history := newTestEvaluator([]*models.AlertRule{rule}, recent)

	if err := ev.HandleEvent(context.Background(), app, recent[0]); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(history.entries) != 0 {
		t.Errorf("expected no rows for already-down app, got %d", len(history.entries))
	}
}

func TestHandleEvent_HistoryFailureDoesNotAbort(t *testing.T) {
	app := &models.App{ID: "app1"}
	rule := models.NewAlertRule("errors", models.ConditionHighSeverity, "")

	history := &mockHistoryRepo{createErr: fmt.Errorf("disk full")}
	store := &mockStore{alerts: &mockAlertRepo{rules: []*models.AlertRule{rule}}, history: history}
	telemetry := &mockTelemetry{events: &mockEventRepo{}}
	ev := NewEvaluator(store, telemetry)

	// Failures writing history are logged, not returned.
	if err := ev.HandleEvent(context.Background(), app, highEvent("app1", "boom")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
}

func TestHandleMetrics_Threshold(t *testing.T) {
	app := &models.App{ID: "app1"}

	rule := models.NewAlertRule("cpu high", models.ConditionMetricThreshold, "app1")
	if err := rule.SetParams(ThresholdParams{MetricKey: "cpu", Operator: ">", Threshold: 90}); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	broken := models.NewAlertRule("broken", models.ConditionMetricThreshold, "")
	broken.Params = `{"operator": "between"}`

	ev, history := newTestEvaluator([]*models.AlertRule{rule, broken}, nil)

	snapshots := []*models.MetricSnapshot{
		{AppID: "app1", MetricKey: "cpu", Value: 95, Timestamp: time.Now()},
		{AppID: "app1", MetricKey: "cpu", Value: 50, Timestamp: time.Now()},
		{AppID: "app1", MetricKey: "memory", Value: 99, Timestamp: time.Now()},
	}

	if err := ev.HandleMetrics(context.Background(), app, snapshots); err != nil {
		t.Fatalf("HandleMetrics: %v", err)
	}

	if len(history.entries) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(history.entries))
	}
	msg := history.entries[0].Message
	if !strings.Contains(msg, "cpu=95") {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestCompareThreshold(t *testing.T) {
	cases := []struct {
		value     float64
		threshold float64
		operator  string
		want      bool
	}{
		{95, 90, ">", true},
		{90, 90, ">", false},
		{90, 90, ">=", true},
		{50, 90, "<", true},
		{90, 90, "<=", true},
		{90, 90, "==", true},
		{90.0000000001, 90, "==", true},
		{91, 90, "!=", true},
		{90, 90, "!=", false},
		{90, 90, "between", false},
	}
	for _, c := range cases {
		if got := compareThreshold(c.value, c.threshold, c.operator); got != c.want {
			t.Errorf("compareThreshold(%g, %g, %q) = %v, want %v",
				c.value, c.threshold, c.operator, got, c.want)
		}
	}
}
