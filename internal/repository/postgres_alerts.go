package repository

import (
	"context"
	"fmt"
	"time"

	"vigil-backend/internal/domain"
)

type pgAlerts struct {
	q dbtx
}

// CreateAlert 写入告警并回填 alert_id
func (r *pgAlerts) CreateAlert(ctx context.Context, a *domain.Alert) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO alerts (family_id, type, severity, room, message_en, message_ko, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING alert_id`,
		a.FamilyID, a.Type, string(a.Severity), a.Room, a.MessageEN, a.MessageKO, a.Time,
	).Scan(&a.AlertID)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// ListAlerts 最近 limit 条，时间倒序（同一时间按 id 倒序）
func (r *pgAlerts) ListAlerts(ctx context.Context, familyID string, limit int) ([]*domain.Alert, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT alert_id, family_id, type, severity, room, message_en, message_ko, time
		FROM alerts
		WHERE family_id = $1
		ORDER BY time DESC, alert_id DESC
		LIMIT $2`,
		familyID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Alert
	for rows.Next() {
		var (
			a        domain.Alert
			severity string
		)
		if err := rows.Scan(&a.AlertID, &a.FamilyID, &a.Type, &severity, &a.Room, &a.MessageEN, &a.MessageKO, &a.Time); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Severity = domain.Severity(severity)
		a.Time = a.Time.UTC()
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return out, nil
}

// CountAlertsBetween [from, to)
func (r *pgAlerts) CountAlertsBetween(ctx context.Context, familyID string, from, to time.Time) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE family_id = $1 AND time >= $2 AND time < $3`,
		familyID, from, to,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return n, nil
}

// DeleteAlert 删除家庭内的告警
func (r *pgAlerts) DeleteAlert(ctx context.Context, familyID string, alertID int64) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM alerts WHERE family_id = $1 AND alert_id = $2`,
		familyID, alertID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return expectAffected(res)
}
