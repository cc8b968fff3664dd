package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"vigil-backend/internal/domain"
	"vigil-backend/internal/notify"
	"vigil-backend/internal/repository"

	"go.uber.org/zap"
)

// PushService 浏览器推送订阅
type PushService struct {
	store     repository.Store
	publicKey string
	policy    notify.EndpointPolicy
	logger    *zap.Logger
	now       Clock
}

// NewPushService publicKey 为 VAPID 公钥（未配置时为空）；policy 限制可订阅的 endpoint
func NewPushService(store repository.Store, publicKey string, policy notify.EndpointPolicy, logger *zap.Logger) *PushService {
	return &PushService{
		store:     store,
		publicKey: publicKey,
		policy:    policy,
		logger:    logger,
		now:       utcNow,
	}
}

// PublicKey VAPID 公钥，浏览器订阅时使用
func (s *PushService) PublicKey() string {
	return s.publicKey
}

// Subscribe 保存订阅；endpoint 已存在时改绑到当前家庭
func (s *PushService) Subscribe(ctx context.Context, familyID string, descriptor json.RawMessage) (*domain.PushSubscription, error) {
	var head struct {
		Endpoint string `json:"endpoint"`
	}
	if len(descriptor) == 0 || json.Unmarshal(descriptor, &head) != nil {
		return nil, validationf("Invalid subscription payload")
	}
	endpoint := strings.TrimSpace(head.Endpoint)
	if endpoint == "" {
		return nil, validationf("Missing subscription endpoint")
	}

	sub := &domain.PushSubscription{
		Endpoint:     endpoint,
		FamilyID:     familyID,
		Subscription: descriptor,
		CreatedAt:    s.now(),
	}
	if err := s.policy.Check(sub); err != nil {
		s.logger.Warn("Rejected push subscription",
			zap.String("family_id", familyID),
			zap.Error(err),
		)
		return nil, validationf("Invalid subscription endpoint")
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.Families().EnsureFamily(ctx, familyID); err != nil {
			return err
		}
		return tx.Subscriptions().UpsertSubscription(ctx, sub)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	s.logger.Info("Push subscription saved", zap.String("family_id", familyID))
	return sub, nil
}
