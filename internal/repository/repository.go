package repository

import (
	"context"
	"errors"
	"time"

	"vigil-backend/internal/domain"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 主键/唯一键冲突
	ErrDuplicate = errors.New("duplicate record")
)

// Store 记录存储网关
// 每个业务单元在自己的事务内执行：fn 返回 nil 提交，否则回滚
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx 事务内可用的各 Repository
type Tx interface {
	Families() FamiliesRepository
	Devices() DevicesRepository
	Settings() SettingsRepository
	Alerts() AlertsRepository
	Motions() MotionsRepository
	Subscriptions() SubscriptionsRepository
}

// FamiliesRepository 家庭
type FamiliesRepository interface {
	// EnsureFamily 不存在则创建（幂等）
	EnsureFamily(ctx context.Context, familyID string) error
	// ListMembers 按 email 升序
	ListMembers(ctx context.Context, familyID string) ([]*domain.User, error)
	// UpsertMember 按 email 插入或改绑家庭；name 为空时保留原值，并回填到 user.Name
	UpsertMember(ctx context.Context, user *domain.User) error
}

// DevicesRepository 设备
type DevicesRepository interface {
	// ListDevices 按 device_id 升序
	ListDevices(ctx context.Context, familyID string) ([]*domain.Device, error)
	GetDevice(ctx context.Context, familyID, deviceID string) (*domain.Device, error)
	// FindDeviceByToken 按 sensor_settings.device_token 精确匹配
	FindDeviceByToken(ctx context.Context, token string) (*domain.Device, error)
	CreateDevice(ctx context.Context, device *domain.Device) error
	// UpdateDevice 只写 name、room、sensor_settings
	UpdateDevice(ctx context.Context, device *domain.Device) error
	// TouchDevice 只写 last_seen、status，不覆盖并发写入的其它列
	TouchDevice(ctx context.Context, deviceID, lastSeen, status string) error
	DeleteDevice(ctx context.Context, familyID, deviceID string) error
}

// SettingsRepository 家庭配置与设备覆盖
type SettingsRepository interface {
	GetFamilySettings(ctx context.Context, familyID string) (*domain.FamilySettings, error)
	UpsertFamilySettings(ctx context.Context, fs *domain.FamilySettings) error
	GetDeviceSettings(ctx context.Context, deviceID string) (*domain.DeviceSettings, error)
	UpsertDeviceSettings(ctx context.Context, ds *domain.DeviceSettings) error
	DeleteDeviceSettings(ctx context.Context, deviceID string) error
}

// AlertsRepository 告警
type AlertsRepository interface {
	// CreateAlert 写入并回填 AlertID
	CreateAlert(ctx context.Context, alert *domain.Alert) error
	// ListAlerts 按时间倒序，最多 limit 条
	ListAlerts(ctx context.Context, familyID string, limit int) ([]*domain.Alert, error)
	// CountAlertsBetween 统计 [from, to) 内的告警
	CountAlertsBetween(ctx context.Context, familyID string, from, to time.Time) (int, error)
	DeleteAlert(ctx context.Context, familyID string, alertID int64) error
}

// MotionsRepository 运动事件（通过设备归属家庭）
type MotionsRepository interface {
	CreateMotion(ctx context.Context, motion *domain.Motion) error
	// ListMotionsSince 时间 >= since 的事件，按时间升序
	ListMotionsSince(ctx context.Context, familyID string, since time.Time) ([]*domain.RoomMotion, error)
	// CountMotionsBetween 统计 [from, to) 内的事件
	CountMotionsBetween(ctx context.Context, familyID string, from, to time.Time) (int, error)
	// LatestMotionTime 最近一次运动时间，没有时返回 nil
	LatestMotionTime(ctx context.Context, familyID string) (*time.Time, error)
}

// SubscriptionsRepository 推送订阅
type SubscriptionsRepository interface {
	ListSubscriptions(ctx context.Context, familyID string) ([]*domain.PushSubscription, error)
	// UpsertSubscription 按 endpoint 插入或改绑家庭
	UpsertSubscription(ctx context.Context, sub *domain.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}
