package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vibranic/central/internal/models"
)

type sqliteAlertRepo struct {
	db *sql.DB
}

func (r *sqliteAlertRepo) Create(ctx context.Context, rule *models.AlertRule) error {
	query := `
		INSERT INTO alerts (id, app_id, name, condition, params_json, severity, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		rule.ID, nullString(rule.AppID), rule.Name, rule.Condition,
		nullString(rule.Params), nullString(rule.Severity), boolToInt(rule.Enabled),
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	query := `
		SELECT id, app_id, name, condition, params_json, severity, enabled, created_at, updated_at
		FROM alerts WHERE id = ?
	`
	return r.scanAlert(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteAlertRepo) GetByName(ctx context.Context, name string) (*models.AlertRule, error) {
	query := `
		SELECT id, app_id, name, condition, params_json, severity, enabled, created_at, updated_at
		FROM alerts WHERE name = ?
	`
	return r.scanAlert(r.db.QueryRowContext(ctx, query, name))
}

func (r *sqliteAlertRepo) Update(ctx context.Context, rule *models.AlertRule) error {
	query := `
		UPDATE alerts SET app_id = ?, name = ?, condition = ?, params_json = ?,
			severity = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		nullString(rule.AppID), rule.Name, rule.Condition, nullString(rule.Params),
		nullString(rule.Severity), boolToInt(rule.Enabled), rule.UpdatedAt,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", rule.ID)
	}
	return nil
}

func (r *sqliteAlertRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}
	return nil
}

func (r *sqliteAlertRepo) List(ctx context.Context) ([]*models.AlertRule, error) {
	query := `
		SELECT id, app_id, name, condition, params_json, severity, enabled, created_at, updated_at
		FROM alerts ORDER BY name
	`
	return r.queryAlerts(ctx, query)
}

func (r *sqliteAlertRepo) ListEnabledForApp(ctx context.Context, appID string, conditions ...models.AlertCondition) ([]*models.AlertRule, error) {
	query := `
		SELECT id, app_id, name, condition, params_json, severity, enabled, created_at, updated_at
		FROM alerts
		WHERE enabled = 1 AND (app_id = ? OR app_id IS NULL)
	`
	args := []interface{}{appID}

	if len(conditions) > 0 {
		placeholders := make([]string, len(conditions))
		for i, c := range conditions {
			placeholders[i] = "?"
			args = append(args, c)
		}
		query += fmt.Sprintf(" AND condition IN (%s)", strings.Join(placeholders, ", "))
	}
	query += " ORDER BY name"

	return r.queryAlerts(ctx, query, args...)
}

func (r *sqliteAlertRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE alerts SET enabled = ?, updated_at = ? WHERE id = ?",
		boolToInt(enabled), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("set alert enabled: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}
	return nil
}

func (r *sqliteAlertRepo) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*models.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var rules []*models.AlertRule
	for rows.Next() {
		rule, err := r.scanAlertRow(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *sqliteAlertRepo) scanAlert(row *sql.Row) (*models.AlertRule, error) {
	rule := &models.AlertRule{}
	var appID, params, severity sql.NullString
	var enabled int

	err := row.Scan(
		&rule.ID, &appID, &rule.Name, &rule.Condition, &params, &severity, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	rule.AppID = appID.String
	rule.Params = params.String
	rule.Severity = severity.String
	rule.Enabled = enabled != 0
	return rule, nil
}

func (r *sqliteAlertRepo) scanAlertRow(rows *sql.Rows) (*models.AlertRule, error) {
	rule := &models.AlertRule{}
	var appID, params, severity sql.NullString
	var enabled int

	err := rows.Scan(
		&rule.ID, &appID, &rule.Name, &rule.Condition, &params, &severity, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	rule.AppID = appID.String
	rule.Params = params.String
	rule.Severity = severity.String
	rule.Enabled = enabled != 0
	return rule, nil
}
