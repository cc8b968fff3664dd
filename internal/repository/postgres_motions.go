package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vigil-backend/internal/domain"
)

type pgMotions struct {
	q dbtx
}

// CreateMotion 追加运动事件
func (r *pgMotions) CreateMotion(ctx context.Context, m *domain.Motion) error {
	err := r.q.QueryRowContext(ctx,
		`INSERT INTO motions (device_id, time) VALUES ($1, $2) RETURNING motion_id`,
		m.DeviceID, m.Time,
	).Scan(&m.MotionID)
	if err != nil {
		return fmt.Errorf("failed to create motion: %w", err)
	}
	return nil
}

// ListMotionsSince motions JOIN devices，按时间升序
func (r *pgMotions) ListMotionsSince(ctx context.Context, familyID string, since time.Time) ([]*domain.RoomMotion, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT m.device_id, d.room, m.time
		FROM motions m
		JOIN devices d ON d.device_id = m.device_id
		WHERE d.family_id = $1 AND m.time >= $2
		ORDER BY m.time ASC, m.motion_id ASC`,
		familyID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list motions: %w", err)
	}
	defer rows.Close()

	var out []*domain.RoomMotion
	for rows.Next() {
		var m domain.RoomMotion
		if err := rows.Scan(&m.DeviceID, &m.Room, &m.Time); err != nil {
			return nil, fmt.Errorf("failed to scan motion: %w", err)
		}
		m.Time = m.Time.UTC()
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate motions: %w", err)
	}
	return out, nil
}

// CountMotionsBetween [from, to)
func (r *pgMotions) CountMotionsBetween(ctx context.Context, familyID string, from, to time.Time) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM motions m
		JOIN devices d ON d.device_id = m.device_id
		WHERE d.family_id = $1 AND m.time >= $2 AND m.time < $3`,
		familyID, from, to,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count motions: %w", err)
	}
	return n, nil
}

// LatestMotionTime 不受 24h 窗口限制
func (r *pgMotions) LatestMotionTime(ctx context.Context, familyID string) (*time.Time, error) {
	var latest sql.NullTime
	err := r.q.QueryRowContext(ctx, `
		SELECT MAX(m.time)
		FROM motions m
		JOIN devices d ON d.device_id = m.device_id
		WHERE d.family_id = $1`,
		familyID,
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest motion: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	t := latest.Time.UTC()
	return &t, nil
}
