package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vigil-backend/internal/domain"
	"vigil-backend/internal/events"
	"vigil-backend/internal/health"
	"vigil-backend/internal/metrics"
	"vigil-backend/internal/repository"
	"vigil-backend/internal/settings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 新建设备的默认值
const (
	DefaultDeviceName = "Unnamed device"
	DefaultRoom       = "Unknown"
	deviceIDPrefix    = "DEV_"
)

// DeviceService 设备管理与运动事件接入
type DeviceService struct {
	store     repository.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       Clock
}

// NewDeviceService 创建设备服务；publisher 为 nil 时不发布事件
func NewDeviceService(store repository.Store, publisher events.Publisher, m *metrics.Metrics, logger *zap.Logger) *DeviceService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &DeviceService{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       utcNow,
	}
}

// CreateDeviceRequest 创建设备请求
type CreateDeviceRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Room string `json:"room"`
}

// UpdateDeviceRequest 更新设备请求（仅更新非空字段）
type UpdateDeviceRequest struct {
	Name *string `json:"name"`
	Room *string `json:"room"`
}

// MotionEvent 设备上报的运动事件
type MotionEvent struct {
	Timestamp string `json:"timestamp"`
}

// MotionResult 运动事件接入结果
type MotionResult struct {
	DeviceID string `json:"device_id"`
	MotionID int64  `json:"motion_id"`
	Time     string `json:"time"`
}

func newDeviceID() string {
	return deviceIDPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func newDeviceToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ListDevices 家庭下的全部设备
func (s *DeviceService) ListDevices(ctx context.Context, familyID string) ([]DeviceView, error) {
	var devices []*domain.Device
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		devices, err = tx.Devices().ListDevices(ctx, familyID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	now := s.now()
	out := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, newDeviceView(d, now))
	}
	return out, nil
}

// GetDevice 单个设备
func (s *DeviceService) GetDevice(ctx context.Context, familyID, deviceID string) (*DeviceView, error) {
	var dev *domain.Device
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		dev, err = tx.Devices().GetDevice(ctx, familyID, deviceID)
		return notFound(err)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	view := newDeviceView(dev, s.now())
	return &view, nil
}

// CreateDevice 创建设备并签发 device_token；家庭不存在时自动创建
func (s *DeviceService) CreateDevice(ctx context.Context, familyID string, req CreateDeviceRequest) (*DeviceView, error) {
	dev := &domain.Device{
		DeviceID: strings.TrimSpace(req.ID),
		FamilyID: familyID,
		Name:     strings.TrimSpace(req.Name),
		Room:     strings.TrimSpace(req.Room),
		LastSeen: domain.LastSeenNever,
		Status:   string(health.StatusOffline),
	}
	if dev.DeviceID == "" {
		dev.DeviceID = newDeviceID()
	}
	if dev.Name == "" {
		dev.Name = DefaultDeviceName
	}
	if dev.Room == "" {
		dev.Room = DefaultRoom
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.Families().EnsureFamily(ctx, familyID); err != nil {
			return err
		}
		fs, err := tx.Settings().GetFamilySettings(ctx, familyID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		eff := settings.Resolve(fs, nil, settings.Defaults)
		dev.SensorSettings = settings.Reflect(map[string]any{domain.DeviceTokenKey: newDeviceToken()}, eff)
		return tx.Devices().CreateDevice(ctx, dev)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, validationf("Device with this ID already exists")
		}
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	s.logger.Info("Device created",
		zap.String("family_id", familyID),
		zap.String("device_id", dev.DeviceID),
	)
	view := newDeviceView(dev, s.now())
	return &view, nil
}

// UpdateDevice 更新名称/房间；状态与 last_seen 只由上报更新
func (s *DeviceService) UpdateDevice(ctx context.Context, familyID, deviceID string, req UpdateDeviceRequest) (*DeviceView, error) {
	var dev *domain.Device
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		dev, err = tx.Devices().GetDevice(ctx, familyID, deviceID)
		if err != nil {
			return notFound(err)
		}
		if req.Name != nil {
			if name := strings.TrimSpace(*req.Name); name != "" {
				dev.Name = name
			}
		}
		if req.Room != nil {
			if room := strings.TrimSpace(*req.Room); room != "" {
				dev.Room = room
			}
		}
		return tx.Devices().UpdateDevice(ctx, dev)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update device: %w", err)
	}
	view := newDeviceView(dev, s.now())
	return &view, nil
}

// DeleteDevice 删除设备及其配置覆盖
func (s *DeviceService) DeleteDevice(ctx context.Context, familyID, deviceID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Devices().GetDevice(ctx, familyID, deviceID); err != nil {
			return notFound(err)
		}
		if err := tx.Settings().DeleteDeviceSettings(ctx, deviceID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return notFound(tx.Devices().DeleteDevice(ctx, familyID, deviceID))
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete device: %w", err)
	}

	s.logger.Info("Device deleted",
		zap.String("family_id", familyID),
		zap.String("device_id", deviceID),
	)
	return nil
}

// IngestMotion 按 device_token 记录一次运动事件并刷新设备在线状态
func (s *DeviceService) IngestMotion(ctx context.Context, token string, ev MotionEvent) (*MotionResult, error) {
	now := s.now()
	at := eventTime(ev.Timestamp, now)

	var (
		dev    *domain.Device
		motion *domain.Motion
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		dev, err = lookupByToken(ctx, tx, token)
		if err != nil {
			return err
		}
		motion = &domain.Motion{DeviceID: dev.DeviceID, Time: at}
		if err := tx.Motions().CreateMotion(ctx, motion); err != nil {
			return err
		}
		return touchDevice(ctx, tx, dev, now)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to ingest motion: %w", err)
	}

	s.metrics.DeviceEvent("motion")
	s.publish(ctx, events.TypeMotion, dev.FamilyID, map[string]any{
		"device_id": dev.DeviceID,
		"room":      dev.Room,
		"time":      health.FormatTimestamp(at),
	})
	return &MotionResult{
		DeviceID: dev.DeviceID,
		MotionID: motion.MotionID,
		Time:     health.FormatTimestamp(at),
	}, nil
}

func (s *DeviceService) publish(ctx context.Context, eventType, familyID string, data any) {
	if err := s.publisher.Publish(ctx, eventType, familyID, data); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("type", eventType),
			zap.String("family_id", familyID),
			zap.Error(err),
		)
	}
}

// lookupByToken 令牌精确匹配；空令牌或未匹配都视为 ErrNotFound
func lookupByToken(ctx context.Context, tx repository.Tx, token string) (*domain.Device, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	dev, err := tx.Devices().FindDeviceByToken(ctx, token)
	if err != nil {
		return nil, notFound(err)
	}
	return dev, nil
}

// touchDevice 以服务端接收时间作为最近联系时间并标记在线
func touchDevice(ctx context.Context, tx repository.Tx, dev *domain.Device, now time.Time) error {
	dev.LastSeen = health.FormatTimestamp(now)
	dev.Status = string(health.StatusOnline)
	return notFound(tx.Devices().TouchDevice(ctx, dev.DeviceID, dev.LastSeen, dev.Status))
}

// eventTime 设备上报时间；无法解析或晚于 now 时取 now
func eventTime(ts string, now time.Time) time.Time {
	at := health.ParseOrNow(ts, now)
	if at.After(now) {
		return now
	}
	return at
}
