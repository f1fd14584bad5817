package uptime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vibranic/central/internal/health"
	"github.com/vibranic/central/internal/models"
	"github.com/vibranic/central/internal/storage"
)

type mockAppRepo struct {
	apps map[string]*models.App
}

func (m *mockAppRepo) Create(ctx context.Context, app *models.App) error { return nil }
func (m *mockAppRepo) GetByID(ctx context.Context, id string) (*models.App, error) {
	return m.apps[id], nil
}
func (m *mockAppRepo) GetByAPIKey(ctx context.Context, key string) (*models.App, error) {
	return nil, nil
}
func (m *mockAppRepo) Update(ctx context.Context, app *models.App) error      { return nil }
func (m *mockAppRepo) UpdateAPIKey(ctx context.Context, id, key string) error { return nil }
func (m *mockAppRepo) Delete(ctx context.Context, id string) error            { return nil }
func (m *mockAppRepo) List(ctx context.Context) ([]*models.App, error)        { return nil, nil }
func (m *mockAppRepo) Count(ctx context.Context) (int64, error)               { return 0, nil }

type mockStore struct {
	appRepo *mockAppRepo
}

func (m *mockStore) Open() error    { return nil }
func (m *mockStore) Close() error   { return nil }
func (m *mockStore) Migrate() error { return nil }

func (m *mockStore) Apps() storage.AppRepository                  { return m.appRepo }
func (m *mockStore) Alerts() storage.AlertRepository              { return nil }
func (m *mockStore) AlertHistory() storage.AlertHistoryRepository { return nil }

type mockUptimeRepo struct {
	records []*models.UptimeRecord

	gotSince time.Time
}

func (m *mockUptimeRepo) Insert(ctx context.Context, record *models.UptimeRecord) error { return nil }

func (m *mockUptimeRepo) ListSince(ctx context.Context, appID string, since time.Time) ([]*models.UptimeRecord, error) {
	m.gotSince = since
	return m.records, nil
}

func (m *mockUptimeRepo) DeleteByApp(ctx context.Context, appID string) error { return nil }

type mockTelemetry struct {
	uptimeRepo *mockUptimeRepo
}

func (m *mockTelemetry) Open() error                    { return nil }
func (m *mockTelemetry) Close() error                   { return nil }
func (m *mockTelemetry) Migrate() error                 { return nil }
func (m *mockTelemetry) Ping(ctx context.Context) error { return nil }

func (m *mockTelemetry) Events() storage.EventRepository   { return nil }
func (m *mockTelemetry) Metrics() storage.MetricRepository { return nil }
func (m *mockTelemetry) Uptime() storage.UptimeRepository  { return m.uptimeRepo }

func serve(handler *Handler, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/api/v1/uptime/{appID}", handler.Get)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func TestGet_Summary(t *testing.T) {
	app := models.NewApp("checkout", "", "")
	store := &mockStore{appRepo: &mockAppRepo{apps: map[string]*models.App{app.ID: app}}}

	now := time.Now()
	telemetry := &mockTelemetry{uptimeRepo: &mockUptimeRepo{records: []*models.UptimeRecord{
		{ID: "u1", AppID: app.ID, Status: models.StatusHealthy, Timestamp: now.Add(-2 * time.Hour)},
		{ID: "u2", AppID: app.ID, Status: models.StatusHealthy, Timestamp: now.Add(-time.Hour)},
		{ID: "u3", AppID: app.ID, Status: models.StatusDown, Timestamp: now},
	}}}

	handler := NewHandler(store, telemetry, 5*time.Second)
	rec := serve(handler, "/api/v1/uptime/"+app.ID)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Data health.Summary `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.TotalRecords != 3 {
		t.Errorf("totalRecords = %d, want 3", resp.Data.TotalRecords)
	}
	if resp.Data.CurrentStatus != models.StatusDown {
		t.Errorf("currentStatus = %q, want down", resp.Data.CurrentStatus)
	}
	want := float64(2) / 3 * 100
	if resp.Data.UptimePercentage < want-0.01 || resp.Data.UptimePercentage > want+0.01 {
		t.Errorf("uptimePercentage = %g, want ~%g", resp.Data.UptimePercentage, want)
	}
	if len(resp.Data.HourlyStatus) != 24 {
		t.Errorf("hourly buckets = %d, want 24", len(resp.Data.HourlyStatus))
	}
}

func TestGet_RangeParam(t *testing.T) {
	app := models.NewApp("checkout", "", "")
	store := &mockStore{appRepo: &mockAppRepo{apps: map[string]*models.App{app.ID: app}}}
	repo := &mockUptimeRepo{}
	handler := NewHandler(store, &mockTelemetry{uptimeRepo: repo}, 5*time.Second)

	rec := serve(handler, "/api/v1/uptime/"+app.ID+"?range=7d")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	lookback := time.Since(repo.gotSince)
	if lookback < 7*24*time.Hour-time.Minute || lookback > 7*24*time.Hour+time.Minute {
		t.Errorf("lookback = %v, want ~7d", lookback)
	}
}

func TestGet_InvalidRange(t *testing.T) {
	app := models.NewApp("checkout", "", "")
	store := &mockStore{appRepo: &mockAppRepo{apps: map[string]*models.App{app.ID: app}}}
	handler := NewHandler(store, &mockTelemetry{uptimeRepo: &mockUptimeRepo{}}, 5*time.Second)

	rec := serve(handler, "/api/v1/uptime/"+app.ID+"?range=1y")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGet_UnknownApp(t *testing.T) {
	store := &mockStore{appRepo: &mockAppRepo{apps: map[string]*models.App{}}}
	handler := NewHandler(store, &mockTelemetry{uptimeRepo: &mockUptimeRepo{}}, 5*time.Second)

	rec := serve(handler, "/api/v1/uptime/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
