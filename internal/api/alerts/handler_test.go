package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vibranic/central/internal/models"
	"github.com/vibranic/central/internal/storage"
)

// Mock repositories
type mockAlertRepo struct {
	rules     []*models.AlertRule
	createErr error
	listErr   error
}

func (m *mockAlertRepo) Create(ctx context.Context, rule *models.AlertRule) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.rules = append(m.rules, rule)
	return nil
}

func (m *mockAlertRepo) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	for _, r := range m.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockAlertRepo) GetByName(ctx context.Context, name string) (*models.AlertRule, error) {
	for _, r := range m.rules {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockAlertRepo) Update(ctx context.Context, rule *models.AlertRule) error {
	for i, r := range m.rules {
		if r.ID == rule.ID {
			m.rules[i] = rule
		}
	}
	return nil
}

func (m *mockAlertRepo) Delete(ctx context.Context, id string) error {
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockAlertRepo) List(ctx context.Context) ([]*models.AlertRule, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.rules, nil
}

func (m *mockAlertRepo) ListEnabledForApp(ctx context.Context, appID string, conditions ...models.AlertCondition) ([]*models.AlertRule, error) {
	return nil, nil
}

func (m *mockAlertRepo) SetEnabled(ctx context.Context, id string, enabled bool) error { return nil }

type mockHistoryRepo struct {
	entries []*models.AlertHistory
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *models.AlertHistory) error {
	m.entries = append(m.entries, history)
	return nil
}

func (m *mockHistoryRepo) List(ctx context.Context, limit, offset int) ([]*models.AlertHistory, int64, error) {
	return m.entries, int64(len(m.entries)), nil
}

func (m *mockHistoryRepo) ListByApp(ctx context.Context, appID string, limit, offset int) ([]*models.AlertHistory, int64, error) {
	var result []*models.AlertHistory
	for _, h := range m.entries {
		if h.AppID == appID {
			result = append(result, h)
		}
	}
	return result, int64(len(result)), nil
}

func (m *mockHistoryRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return int64(len(m.entries)), nil
}

func (m *mockHistoryRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type mockStore struct {
	alertRepo   *mockAlertRepo
	historyRepo *mockHistoryRepo
}

func (m *mockStore) Open() error    { return nil }
func (m *mockStore) Close() error   { return nil }
func (m *mockStore) Migrate() error { return nil }

func (m *mockStore) Apps() storage.AppRepository                  { return nil }
func (m *mockStore) Alerts() storage.AlertRepository              { return m.alertRepo }
func (m *mockStore) AlertHistory() storage.AlertHistoryRepository { return m.historyRepo }

func newFixture() (*Handler, *mockStore) {
	store := &mockStore{alertRepo: &mockAlertRepo{}, historyRepo: &mockHistoryRepo{}}
	return NewHandler(store, 5*time.Second), store
}

func serve(handler *Handler, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/api/v1/alerts", handler.List)
	r.Post("/api/v1/alerts", handler.Create)
	r.Get("/api/v1/alerts/history", handler.History)
	r.Get("/api/v1/alerts/{id}", handler.Get)
	r.Put("/api/v1/alerts/{id}", handler.Update)
	r.Delete("/api/v1/alerts/{id}", handler.Delete)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreate_Success(t *testing.T) {
	handler, store := newFixture()

	body := `{"name":"high watch","condition":"high_severity"}`
	rec := serve(handler, httptest.NewRequest("POST", "/api/v1/alerts", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if len(store.alertRepo.rules) != 1 {
		t.Fatalf("rules stored = %d, want 1", len(store.alertRepo.rules))
	}
	if !store.alertRepo.rules[0].Enabled {
		t.Error("rule not enabled by default")
	}
}

func TestCreate_ThresholdParams(t *testing.T) {
	handler, store := newFixture()

	body := `{"name":"cpu pressure","condition":"metric_threshold","params":{"metric_key":"cpu","operator":">","threshold":90}}`
	rec := serve(handler, httptest.NewRequest("POST", "/api/v1/alerts", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if store.alertRepo.rules[0].Params == "" {
		t.Error("params not stored")
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"condition":"high_severity"}`},
		{"invalid condition", `{"name":"x","condition":"sometimes"}`},
		{"threshold missing key", `{"name":"x","condition":"metric_threshold","params":{"operator":">","threshold":1}}`},
		{"threshold bad operator", `{"name":"x","condition":"metric_threshold","params":{"metric_key":"cpu","operator":"~","threshold":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, store := newFixture()
			rec := serve(handler, httptest.NewRequest("POST", "/api/v1/alerts", strings.NewReader(tt.body)))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if len(store.alertRepo.rules) != 0 {
				t.Errorf("rules stored = %d, want 0", len(store.alertRepo.rules))
			}
		})
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	handler, store := newFixture()
	store.alertRepo.rules = []*models.AlertRule{
		models.NewAlertRule("high watch", models.ConditionHighSeverity, ""),
	}

	body := `{"name":"high watch","condition":"any_error"}`
	rec := serve(handler, httptest.NewRequest("POST", "/api/v1/alerts", strings.NewReader(body)))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestUpdate_Success(t *testing.T) {
	handler, store := newFixture()
	rule := models.NewAlertRule("high watch", models.ConditionHighSeverity, "")
	store.alertRepo.rules = []*models.AlertRule{rule}

	body := `{"name":"high watch","condition":"high_severity","appId":"app1","enabled":false}`
	rec := serve(handler, httptest.NewRequest("PUT", "/api/v1/alerts/"+rule.ID, strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	updated := store.alertRepo.rules[0]
	if updated.Enabled {
		t.Error("rule still enabled")
	}
	if updated.AppID != "app1" {
		t.Errorf("appId = %q, want 'app1'", updated.AppID)
	}
}

func TestDelete_NotFound(t *testing.T) {
	handler, _ := newFixture()

	rec := serve(handler, httptest.NewRequest("DELETE", "/api/v1/alerts/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHistory_List(t *testing.T) {
	handler, store := newFixture()
	store.historyRepo.entries = []*models.AlertHistory{
		{ID: "h1", AlertName: "high watch", AppID: "app1", Message: "High severity event: boom", TriggeredAt: time.Now()},
		{ID: "h2", AlertName: "high watch", AppID: "app2", Message: "High severity event: crash", TriggeredAt: time.Now()},
	}

	rec := serve(handler, httptest.NewRequest("GET", "/api/v1/alerts/history", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Data HistoryListResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Total != 2 || len(resp.Data.Items) != 2 {
		t.Errorf("total = %d items = %d, want 2/2", resp.Data.Total, len(resp.Data.Items))
	}
}

func TestHistory_FilterByApp(t *testing.T) {
	handler, store := newFixture()
	store.historyRepo.entries = []*models.AlertHistory{
		{ID: "h1", AppID: "app1", TriggeredAt: time.Now()},
		{ID: "h2", AppID: "app2", TriggeredAt: time.Now()},
	}

	rec := serve(handler, httptest.NewRequest("GET", "/api/v1/alerts/history?appId=app1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Data HistoryListResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Items) != 1 || resp.Data.Items[0].ID != "h1" {
		t.Errorf("unexpected items: %+v", resp.Data.Items)
	}
}

func TestHistory_InvalidPagination(t *testing.T) {
	handler, _ := newFixture()

	rec := serve(handler, httptest.NewRequest("GET", "/api/v1/alerts/history?limit=zero", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
