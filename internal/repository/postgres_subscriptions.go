package repository

import (
	"context"
	"fmt"

	"vigil-backend/internal/domain"
)

type pgSubscriptions struct {
	q dbtx
}

// ListSubscriptions 家庭下所有推送订阅
func (r *pgSubscriptions) ListSubscriptions(ctx context.Context, familyID string) ([]*domain.PushSubscription, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT endpoint, family_id, subscription, created_at
		FROM push_subscriptions
		WHERE family_id = $1
		ORDER BY created_at, endpoint`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*domain.PushSubscription
	for rows.Next() {
		var (
			s    domain.PushSubscription
			blob []byte
		)
		if err := rows.Scan(&s.Endpoint, &s.FamilyID, &blob, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		s.Subscription = append([]byte(nil), blob...)
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return out, nil
}

// UpsertSubscription endpoint 已存在时改绑家庭并更新描述
func (r *pgSubscriptions) UpsertSubscription(ctx context.Context, s *domain.PushSubscription) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO push_subscriptions (endpoint, family_id, subscription)
		VALUES ($1, $2, $3)
		ON CONFLICT (endpoint) DO UPDATE SET
			family_id = EXCLUDED.family_id,
			subscription = EXCLUDED.subscription
		RETURNING created_at`,
		s.Endpoint, s.FamilyID, []byte(s.Subscription),
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// DeleteSubscription 删除订阅（不存在不报错）
func (r *pgSubscriptions) DeleteSubscription(ctx context.Context, endpoint string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}
