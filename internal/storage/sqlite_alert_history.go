package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vibranic/central/internal/models"
)

type sqliteAlertHistoryRepo struct {
	db *sql.DB
}

func (r *sqliteAlertHistoryRepo) Create(ctx context.Context, history *models.AlertHistory) error {
	query := `
		INSERT INTO alert_history (id, alert_id, alert_name, app_id, condition, message, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		history.ID, history.AlertID, history.AlertName, history.AppID,
		history.Condition, history.Message, history.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert history: %w", err)
	}
	return nil
}

func (r *sqliteAlertHistoryRepo) List(ctx context.Context, limit, offset int) ([]*models.AlertHistory, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_history").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alert history: %w", err)
	}

	query := `
		SELECT id, alert_id, alert_name, app_id, condition, message, triggered_at
		FROM alert_history ORDER BY triggered_at DESC LIMIT ? OFFSET ?
	`
	entries, err := r.queryHistory(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *sqliteAlertHistoryRepo) ListByApp(ctx context.Context, appID string, limit, offset int) ([]*models.AlertHistory, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM alert_history WHERE app_id = ?", appID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alert history: %w", err)
	}

	query := `
		SELECT id, alert_id, alert_name, app_id, condition, message, triggered_at
		FROM alert_history WHERE app_id = ? ORDER BY triggered_at DESC LIMIT ? OFFSET ?
	`
	entries, err := r.queryHistory(ctx, query, appID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *sqliteAlertHistoryRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM alert_history WHERE triggered_at >= ?", since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count alert history: %w", err)
	}
	return count, nil
}

func (r *sqliteAlertHistoryRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM alert_history WHERE triggered_at < ?", before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete alert history: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func (r *sqliteAlertHistoryRepo) queryHistory(ctx context.Context, query string, args ...interface{}) ([]*models.AlertHistory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	var entries []*models.AlertHistory
	for rows.Next() {
		h := &models.AlertHistory{}
		err := rows.Scan(
			&h.ID, &h.AlertID, &h.AlertName, &h.AppID,
			&h.Condition, &h.Message, &h.TriggeredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert history: %w", err)
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}
