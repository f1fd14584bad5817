package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vibranic/central/internal/models"
)

type sqliteAppRepo struct {
	db *sql.DB
}

func (r *sqliteAppRepo) Create(ctx context.Context, app *models.App) error {
	query := `
		INSERT INTO apps (id, name, api_key, url, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		app.ID, app.Name, app.APIKey, nullString(app.URL), nullString(app.Description),
		app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert app: %w", err)
	}
	return nil
}

func (r *sqliteAppRepo) GetByID(ctx context.Context, id string) (*models.App, error) {
	query := `
		SELECT id, name, api_key, url, description, created_at, updated_at
		FROM apps WHERE id = ?
	`
	return r.scanApp(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteAppRepo) GetByAPIKey(ctx context.Context, key string) (*models.App, error) {
	query := `
		SELECT id, name, api_key, url, description, created_at, updated_at
		FROM apps WHERE api_key = ?
	`
	return r.scanApp(r.db.QueryRowContext(ctx, query, key))
}

func (r *sqliteAppRepo) Update(ctx context.Context, app *models.App) error {
	query := `
		UPDATE apps SET name = ?, url = ?, description = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		app.Name, nullString(app.URL), nullString(app.Description), app.UpdatedAt,
		app.ID,
	)
	if err != nil {
		return fmt.Errorf("update app: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("app not found: %s", app.ID)
	}
	return nil
}

func (r *sqliteAppRepo) UpdateAPIKey(ctx context.Context, id, key string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE apps SET api_key = ?, updated_at = ? WHERE id = ?",
		key, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("app not found: %s", id)
	}
	return nil
}

func (r *sqliteAppRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM apps WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete app: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("app not found: %s", id)
	}
	return nil
}

func (r *sqliteAppRepo) List(ctx context.Context) ([]*models.App, error) {
	query := `
		SELECT id, name, api_key, url, description, created_at, updated_at
		FROM apps ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query apps: %w", err)
	}
	defer rows.Close()

	var apps []*models.App
	for rows.Next() {
		app, err := r.scanAppRow(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (r *sqliteAppRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM apps").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count apps: %w", err)
	}
	return count, nil
}

func (r *sqliteAppRepo) scanApp(row *sql.Row) (*models.App, error) {
	app := &models.App{}
	var url, description sql.NullString

	err := row.Scan(
		&app.ID, &app.Name, &app.APIKey, &url, &description,
		&app.CreatedAt, &app.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan app: %w", err)
	}

	app.URL = url.String
	app.Description = description.String
	return app, nil
}

func (r *sqliteAppRepo) scanAppRow(rows *sql.Rows) (*models.App, error) {
	app := &models.App{}
	var url, description sql.NullString

	err := rows.Scan(
		&app.ID, &app.Name, &app.APIKey, &url, &description,
		&app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan app: %w", err)
	}

	app.URL = url.String
	app.Description = description.String
	return app, nil
}

// Helper functions

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
