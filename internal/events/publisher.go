// Package events 领域事件发布（Redis Streams）
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediscommon "vigil-backend/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 事件类型
const (
	TypeAlertCreated = "alert.created"
	TypeDeviceSeen   = "device.seen"
	TypeMotion       = "motion.recorded"
)

// Publisher 事件发布；调用方在事务提交后调用，失败只记录日志
type Publisher interface {
	Publish(ctx context.Context, eventType, familyID string, data any) error
}

// NopPublisher 未启用 Redis 时使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

// StreamPublisher 写入 Redis Streams，供下游（短信、通话等）消费
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
	now    func() time.Time
}

// NewStreamPublisher 创建 StreamPublisher
func NewStreamPublisher(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
		now:    time.Now,
	}
}

// Publish XADD 一条事件：type / family_id / data(JSON) / timestamp
func (p *StreamPublisher) Publish(ctx context.Context, eventType, familyID string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", eventType, err)
	}

	id, err := rediscommon.PublishToStream(ctx, p.client, p.stream, p.maxLen, map[string]interface{}{
		"type":      eventType,
		"family_id": familyID,
		"data":      body,
		"timestamp": p.now().UTC().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", eventType, err)
	}

	p.logger.Debug("Event published",
		zap.String("stream", p.stream),
		zap.String("event_type", eventType),
		zap.String("message_id", id),
	)
	return nil
}
