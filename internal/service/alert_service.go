package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"vigil-backend/internal/domain"
	"vigil-backend/internal/events"
	"vigil-backend/internal/health"
	"vigil-backend/internal/metrics"
	"vigil-backend/internal/notify"
	"vigil-backend/internal/report"
	"vigil-backend/internal/repository"
	"vigil-backend/internal/telemetry"

	"go.uber.org/zap"
)

const (
	// DefaultAlertType 未指定类型时使用
	DefaultAlertType = "custom"
	// EventHeartbeat 心跳只刷新在线状态，不产生告警
	EventHeartbeat = "heartbeat"
	// ExportLimit 导出的最大告警条数
	ExportLimit = 1000
	// maxListLimit 列表接口的上限
	maxListLimit = 500

	demoAlertType = "demo"
	alertTitle    = "VIGIL Alert"
	demoTitle     = "VIGIL Demo Alert"
	notifyURL     = "/"
)

// 告警来源（指标标签）
const (
	sourceAPI    = "api"
	sourceDemo   = "demo"
	sourceDevice = "device"
)

// Notifier 告警推送 fan-out
type Notifier interface {
	Fanout(ctx context.Context, subs []*domain.PushSubscription, n notify.Notification) notify.FanoutResult
}

// AlertService 告警创建、设备事件接入与推送
type AlertService struct {
	store     repository.Store
	notifier  Notifier
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       Clock
}

// NewAlertService 创建告警服务；publisher 为 nil 时不发布事件
func NewAlertService(store repository.Store, notifier Notifier, publisher events.Publisher, m *metrics.Metrics, logger *zap.Logger) *AlertService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &AlertService{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       utcNow,
	}
}

// CreateAlertRequest 手动创建告警
type CreateAlertRequest struct {
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Room      string `json:"room"`
	MessageEN string `json:"message_en"`
	MessageKO string `json:"message_ko"`
}

// AlertResult 告警与推送统计
type AlertResult struct {
	Alert    AlertView           `json:"alert"`
	Delivery notify.FanoutResult `json:"delivery"`
}

// DeviceEvent 设备上报的事件
type DeviceEvent struct {
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Room      string `json:"room"`
	Message   string `json:"message"`
	MessageKO string `json:"message_ko"`
	Timestamp string `json:"timestamp"`
}

// IngestResult 设备事件接入结果；心跳时 Alert 为空
type IngestResult struct {
	DeviceID string               `json:"device_id"`
	Status   string               `json:"status"`
	LastSeen string               `json:"last_seen"`
	Alert    *AlertView           `json:"alert,omitempty"`
	Delivery *notify.FanoutResult `json:"delivery,omitempty"`
}

func parseSeverity(s string) (domain.Severity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return domain.SeverityMedium, nil
	}
	sev := domain.Severity(s)
	if !sev.Valid() {
		return "", validationf("invalid severity %q", s)
	}
	return sev, nil
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// ListAlerts 最近的告警，按时间倒序；limit<=0 时取默认值
func (s *AlertService) ListAlerts(ctx context.Context, familyID string, limit int) ([]AlertView, error) {
	if limit <= 0 {
		limit = telemetry.AlertListLimit
	}
	limit = min(limit, maxListLimit)

	var alerts []*domain.Alert
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		alerts, err = tx.Alerts().ListAlerts(ctx, familyID, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return newAlertViews(alerts), nil
}

// DeleteAlert 删除告警
func (s *AlertService) DeleteAlert(ctx context.Context, familyID string, alertID int64) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		return notFound(tx.Alerts().DeleteAlert(ctx, familyID, alertID))
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return nil
}

// ExportAlerts 导出最近告警为 xlsx
func (s *AlertService) ExportAlerts(ctx context.Context, familyID string) ([]byte, error) {
	var alerts []*domain.Alert
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		alerts, err = tx.Alerts().ListAlerts(ctx, familyID, ExportLimit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for export: %w", err)
	}
	data, err := report.GenerateAlertsWorkbook(alerts)
	if err != nil {
		return nil, fmt.Errorf("failed to export alerts: %w", err)
	}
	return data, nil
}

// CreateAlert 写入告警（服务端时间），提交后推送到家庭全部订阅
func (s *AlertService) CreateAlert(ctx context.Context, familyID string, req CreateAlertRequest) (*AlertResult, error) {
	sev, err := parseSeverity(req.Severity)
	if err != nil {
		return nil, err
	}
	alert := &domain.Alert{
		FamilyID:  familyID,
		Type:      orDefault(req.Type, DefaultAlertType),
		Severity:  sev,
		Room:      orDefault(req.Room, DefaultRoom),
		MessageEN: strings.TrimSpace(req.MessageEN),
		MessageKO: strings.TrimSpace(req.MessageKO),
		Time:      s.now(),
	}

	var subs []*domain.PushSubscription
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.Families().EnsureFamily(ctx, familyID); err != nil {
			return err
		}
		var err error
		subs, err = insertAlert(ctx, tx, alert)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	body := alert.MessageEN
	if body == "" {
		body = fmt.Sprintf("%s alert in %s.", capitalize(alert.Type), alert.Room)
	}
	res := s.afterCommit(ctx, alert, subs, notify.Notification{
		Title: alertTitle,
		Body:  body,
		URL:   notifyURL,
	}, sourceAPI)
	return res, nil
}

// CreateDemoAlert 以设备名义生成一条演示告警
func (s *AlertService) CreateDemoAlert(ctx context.Context, familyID, deviceID string) (*AlertResult, error) {
	var (
		alert *domain.Alert
		dev   *domain.Device
		subs  []*domain.PushSubscription
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		dev, err = tx.Devices().GetDevice(ctx, familyID, deviceID)
		if err != nil {
			return notFound(err)
		}
		alert = &domain.Alert{
			FamilyID:  familyID,
			Type:      demoAlertType,
			Severity:  domain.SeverityMedium,
			Room:      orDefault(dev.Room, DefaultRoom),
			MessageEN: fmt.Sprintf("Demo alert from %s", dev.Name),
			MessageKO: fmt.Sprintf("테스트 알림: %s", dev.Name),
			Time:      s.now(),
		}
		subs, err = insertAlert(ctx, tx, alert)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to create demo alert: %w", err)
	}

	res := s.afterCommit(ctx, alert, subs, notify.Notification{
		Title: demoTitle,
		Body:  fmt.Sprintf("%s in %s sent a demo alert.", dev.Name, alert.Room),
		URL:   notifyURL,
	}, sourceDemo)
	return res, nil
}

// IngestDeviceEvent 按 device_token 接入设备事件：刷新在线状态；非心跳事件生成告警并推送
func (s *AlertService) IngestDeviceEvent(ctx context.Context, token string, ev DeviceEvent) (*IngestResult, error) {
	evType := strings.ToLower(strings.TrimSpace(ev.Type))
	heartbeat := evType == EventHeartbeat
	now := s.now()

	var (
		dev   *domain.Device
		alert *domain.Alert
		subs  []*domain.PushSubscription
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		// 先识别设备：未知令牌一律 NotFound
		dev, err = lookupByToken(ctx, tx, token)
		if err != nil {
			return err
		}
		if evType == "" {
			return validationf("event type is required")
		}
		var sev domain.Severity
		if !heartbeat {
			if sev, err = parseSeverity(ev.Severity); err != nil {
				return err
			}
		}

		if err := touchDevice(ctx, tx, dev, now); err != nil {
			return err
		}
		if heartbeat {
			return nil
		}

		room := orDefault(ev.Room, orDefault(dev.Room, DefaultRoom))
		alert = &domain.Alert{
			FamilyID:  dev.FamilyID,
			Type:      evType,
			Severity:  sev,
			Room:      room,
			MessageEN: orDefault(ev.Message, fmt.Sprintf("%s detected by %s in %s.", capitalize(evType), dev.Name, room)),
			MessageKO: orDefault(ev.MessageKO, fmt.Sprintf("%s에서 %s 감지 (%s)", room, evType, dev.Name)),
			Time:      now,
		}
		subs, err = insertAlert(ctx, tx, alert)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		if IsValidation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to ingest device event: %w", err)
	}

	s.metrics.DeviceEvent(evType)
	if err := s.publisher.Publish(ctx, events.TypeDeviceSeen, dev.FamilyID, map[string]any{
		"device_id":  dev.DeviceID,
		"type":       evType,
		"last_seen":  dev.LastSeen,
		"event_time": health.FormatTimestamp(eventTime(ev.Timestamp, now)),
	}); err != nil {
		s.logger.Warn("Failed to publish device event", zap.String("device_id", dev.DeviceID), zap.Error(err))
	}

	out := &IngestResult{
		DeviceID: dev.DeviceID,
		Status:   string(health.ComputeStatus(dev.LastSeen, now)),
		LastSeen: dev.LastSeen,
	}
	if heartbeat {
		return out, nil
	}

	res := s.afterCommit(ctx, alert, subs, notify.Notification{
		Title: alertTitle,
		Body:  alert.MessageEN,
		URL:   notifyURL,
	}, sourceDevice)
	out.Alert = &res.Alert
	out.Delivery = &res.Delivery
	return out, nil
}

// insertAlert 事务内写入告警并读取当前订阅
func insertAlert(ctx context.Context, tx repository.Tx, alert *domain.Alert) ([]*domain.PushSubscription, error) {
	if err := tx.Alerts().CreateAlert(ctx, alert); err != nil {
		return nil, err
	}
	return tx.Subscriptions().ListSubscriptions(ctx, alert.FamilyID)
}

// afterCommit 提交后推送、清理失效订阅、发布事件；失败只记录
func (s *AlertService) afterCommit(ctx context.Context, alert *domain.Alert, subs []*domain.PushSubscription, n notify.Notification, source string) *AlertResult {
	s.metrics.AlertCreated(source, string(alert.Severity))

	n.AlertID = alert.AlertID
	n.Severity = string(alert.Severity)
	var res notify.FanoutResult
	if s.notifier != nil {
		res = s.notifier.Fanout(ctx, subs, n)
	} else {
		res = notify.FanoutResult{Attempted: len(subs), Failed: len(subs)}
	}
	s.pruneGone(ctx, res.Gone)

	view := newAlertView(alert)
	if err := s.publisher.Publish(ctx, events.TypeAlertCreated, alert.FamilyID, view); err != nil {
		s.logger.Warn("Failed to publish alert event", zap.Int64("alert_id", alert.AlertID), zap.Error(err))
	}

	s.logger.Info("Alert created",
		zap.String("family_id", alert.FamilyID),
		zap.Int64("alert_id", alert.AlertID),
		zap.String("type", alert.Type),
		zap.String("severity", string(alert.Severity)),
		zap.Int("attempted", res.Attempted),
		zap.Int("delivered", res.Delivered),
		zap.Int("failed", res.Failed),
	)
	return &AlertResult{Alert: view, Delivery: res}
}

// pruneGone 删除已失效（404/410）的订阅
func (s *AlertService) pruneGone(ctx context.Context, endpoints []string) {
	if len(endpoints) == 0 {
		return
	}
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		for _, ep := range endpoints {
			if err := tx.Subscriptions().DeleteSubscription(ctx, ep); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to prune gone subscriptions", zap.Int("count", len(endpoints)), zap.Error(err))
		return
	}
	s.logger.Info("Pruned gone subscriptions", zap.Int("count", len(endpoints)))
}
