// Package consumer 设备通过 MQTT 上报事件
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqttcommon "vigil-backend/common/mqtt"
	"vigil-backend/internal/service"

	"go.uber.org/zap"
)

// 主题格式: vigil/devices/{device_token}/events|motion
const (
	TopicEvents = "vigil/devices/+/events"
	TopicMotion = "vigil/devices/+/motion"

	handleTimeout = 15 * time.Second
)

// Subscriber MQTT 订阅（common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// EventIngester 设备事件接入（service.AlertService 实现）
type EventIngester interface {
	IngestDeviceEvent(ctx context.Context, token string, ev service.DeviceEvent) (*service.IngestResult, error)
}

// MotionIngester 运动事件接入（service.DeviceService 实现）
type MotionIngester interface {
	IngestMotion(ctx context.Context, token string, ev service.MotionEvent) (*service.MotionResult, error)
}

// MQTTConsumer MQTT 消息消费者
type MQTTConsumer struct {
	subscriber Subscriber
	events     EventIngester
	motions    MotionIngester
	qos        byte
	logger     *zap.Logger

	ctx context.Context
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(subscriber Subscriber, events EventIngester, motions MotionIngester, qos byte, logger *zap.Logger) *MQTTConsumer {
	return &MQTTConsumer{
		subscriber: subscriber,
		events:     events,
		motions:    motions,
		qos:        qos,
		logger:     logger,
		ctx:        context.Background(),
	}
}

// Start 订阅设备主题；ctx 取消后的消息不再处理
func (c *MQTTConsumer) Start(ctx context.Context) error {
	c.ctx = ctx
	if err := c.subscriber.Subscribe(TopicEvents, c.qos, c.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to events topic: %w", err)
	}
	if err := c.subscriber.Subscribe(TopicMotion, c.qos, c.handleMotion); err != nil {
		return fmt.Errorf("failed to subscribe to motion topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.Strings("topics", []string{TopicEvents, TopicMotion}),
	)
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() {
	if err := c.subscriber.Unsubscribe(TopicEvents, TopicMotion); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("MQTT consumer stopped")
}

// tokenFromTopic vigil/devices/{token}/{kind}
func tokenFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "vigil" || parts[1] != "devices" || parts[2] == "" {
		return "", fmt.Errorf("invalid topic format: %s", topic)
	}
	return parts[2], nil
}

func (c *MQTTConsumer) handleEvent(topic string, payload []byte) error {
	token, err := tokenFromTopic(topic)
	if err != nil {
		return err
	}
	var ev service.DeviceEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to unmarshal device event: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.ctx, handleTimeout)
	defer cancel()

	res, err := c.events.IngestDeviceEvent(ctx, token, ev)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return fmt.Errorf("unknown device token on %s", topic)
		}
		return err
	}

	fields := []zap.Field{
		zap.String("device_id", res.DeviceID),
		zap.String("type", ev.Type),
	}
	if res.Alert != nil {
		fields = append(fields, zap.Int64("alert_id", res.Alert.ID))
	}
	c.logger.Debug("Device event ingested", fields...)
	return nil
}

func (c *MQTTConsumer) handleMotion(topic string, payload []byte) error {
	token, err := tokenFromTopic(topic)
	if err != nil {
		return err
	}
	var ev service.MotionEvent
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("failed to unmarshal motion event: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(c.ctx, handleTimeout)
	defer cancel()

	res, err := c.motions.IngestMotion(ctx, token, ev)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return fmt.Errorf("unknown device token on %s", topic)
		}
		return err
	}

	c.logger.Debug("Motion ingested",
		zap.String("device_id", res.DeviceID),
		zap.Int64("motion_id", res.MotionID),
	)
	return nil
}
