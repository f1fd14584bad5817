// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"time"

	"github.com/vibranic/central/internal/models"
)

// Storage is the main interface for metadata persistence: applications,
// alert rules and alert history.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Apps() AppRepository
	Alerts() AlertRepository
	AlertHistory() AlertHistoryRepository
}

// AppRepository defines operations for application management.
type AppRepository interface {
	Create(ctx context.Context, app *models.App) error
	GetByID(ctx context.Context, id string) (*models.App, error)
	// GetByAPIKey resolves an ingestion API key to its application.
	// Returns nil without error when the key is unknown.
	GetByAPIKey(ctx context.Context, key string) (*models.App, error)
	Update(ctx context.Context, app *models.App) error
	// UpdateAPIKey replaces the application's ingestion key.
	UpdateAPIKey(ctx context.Context, id, key string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.App, error)
	Count(ctx context.Context) (int64, error)
}

// AlertRepository defines operations for alert rule management.
type AlertRepository interface {
	Create(ctx context.Context, rule *models.AlertRule) error
	GetByID(ctx context.Context, id string) (*models.AlertRule, error)
	GetByName(ctx context.Context, name string) (*models.AlertRule, error)
	Update(ctx context.Context, rule *models.AlertRule) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.AlertRule, error)
	// ListEnabledForApp returns enabled rules scoped to the given app or
	// to all apps, restricted to the given conditions.
	ListEnabledForApp(ctx context.Context, appID string, conditions ...models.AlertCondition) ([]*models.AlertRule, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// AlertHistoryRepository defines operations for alert history.
type AlertHistoryRepository interface {
	Create(ctx context.Context, history *models.AlertHistory) error
	List(ctx context.Context, limit, offset int) ([]*models.AlertHistory, int64, error)
	ListByApp(ctx context.Context, appID string, limit, offset int) ([]*models.AlertHistory, int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
