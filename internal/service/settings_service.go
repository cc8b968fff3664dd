package service

import (
	"context"
	"errors"
	"fmt"

	"vigil-backend/internal/domain"
	"vigil-backend/internal/repository"
	"vigil-backend/internal/settings"

	"go.uber.org/zap"
)

// SettingsService 家庭/设备配置
type SettingsService struct {
	store    repository.Store
	defaults domain.EffectiveSettings
	logger   *zap.Logger
	now      Clock
}

// NewSettingsService 创建配置服务
func NewSettingsService(store repository.Store, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		store:    store,
		defaults: settings.Defaults,
		logger:   logger,
		now:      utcNow,
	}
}

// ParseSettingsPatch 解析配置更新，类型/取值错误转换为 ValidationError
func ParseSettingsPatch(data []byte) (settings.Patch, error) {
	p, err := settings.ParsePatch(data)
	if err != nil {
		return settings.Patch{}, &ValidationError{Reason: err.Error()}
	}
	return p, nil
}

// DeviceSettingsBundle 设备配置详情
type DeviceSettingsBundle struct {
	Device            DeviceView               `json:"device"`
	FamilySettings    domain.EffectiveSettings `json:"family_settings"`
	DeviceSettings    domain.DeviceSettings    `json:"device_settings"`
	EffectiveSettings domain.EffectiveSettings `json:"effective_settings"`
}

// DeviceSettingsUpdate 设备配置更新结果
type DeviceSettingsUpdate struct {
	DeviceSettings    domain.DeviceSettings    `json:"device_settings"`
	EffectiveSettings domain.EffectiveSettings `json:"effective_settings"`
}

// ensureFamilySettings 读取家庭配置；不存在时创建家庭与全继承的配置行（幂等）
func ensureFamilySettings(ctx context.Context, tx repository.Tx, familyID string) (*domain.FamilySettings, error) {
	fs, err := tx.Settings().GetFamilySettings(ctx, familyID)
	if err == nil {
		return fs, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err := tx.Families().EnsureFamily(ctx, familyID); err != nil {
		return nil, err
	}
	fs = &domain.FamilySettings{FamilyID: familyID}
	if err := tx.Settings().UpsertFamilySettings(ctx, fs); err != nil {
		return nil, err
	}
	return fs, nil
}

// loadDeviceSettings 不存在时返回全继承的记录，existed=false
func loadDeviceSettings(ctx context.Context, tx repository.Tx, deviceID string) (ds *domain.DeviceSettings, existed bool, err error) {
	ds, err = tx.Settings().GetDeviceSettings(ctx, deviceID)
	if err == nil {
		return ds, true, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.DeviceSettings{DeviceID: deviceID}, false, nil
	}
	return nil, false, err
}

// GetFamilySettings 家庭生效配置（家庭 > 默认）
func (s *SettingsService) GetFamilySettings(ctx context.Context, familyID string) (domain.EffectiveSettings, error) {
	var eff domain.EffectiveSettings
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		fs, err := ensureFamilySettings(ctx, tx, familyID)
		if err != nil {
			return err
		}
		eff = settings.Resolve(fs, nil, s.defaults)
		return nil
	})
	if err != nil {
		return domain.EffectiveSettings{}, fmt.Errorf("failed to get family settings: %w", err)
	}
	return eff, nil
}

// UpdateFamilySettings 部分更新家庭配置，并在同一事务内向设备传播
func (s *SettingsService) UpdateFamilySettings(ctx context.Context, familyID string, patch settings.Patch) (domain.EffectiveSettings, error) {
	var (
		eff     domain.EffectiveSettings
		touched int
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		fs, err := ensureFamilySettings(ctx, tx, familyID)
		if err != nil {
			return err
		}
		settings.ApplyFamilyUpdate(fs, patch)
		if err := tx.Settings().UpsertFamilySettings(ctx, fs); err != nil {
			return err
		}

		devices, err := tx.Devices().ListDevices(ctx, familyID)
		if err != nil {
			return err
		}
		for _, dev := range devices {
			ds, existed, err := loadDeviceSettings(ctx, tx, dev.DeviceID)
			if err != nil {
				return err
			}
			if settings.Cascade(ds, patch) || !existed {
				if err := tx.Settings().UpsertDeviceSettings(ctx, ds); err != nil {
					return err
				}
				touched++
			}
			dev.SensorSettings = settings.Reflect(dev.SensorSettings, settings.Resolve(fs, ds, s.defaults))
			if err := tx.Devices().UpdateDevice(ctx, dev); err != nil {
				return err
			}
		}

		eff = settings.Resolve(fs, nil, s.defaults)
		return nil
	})
	if err != nil {
		return domain.EffectiveSettings{}, fmt.Errorf("failed to update family settings: %w", err)
	}

	s.logger.Info("Family settings updated",
		zap.String("family_id", familyID),
		zap.Int("device_settings_written", touched),
	)
	return eff, nil
}

// GetDeviceSettingsBundle 设备、家庭配置、设备覆盖、生效配置
func (s *SettingsService) GetDeviceSettingsBundle(ctx context.Context, familyID, deviceID string) (*DeviceSettingsBundle, error) {
	var bundle *DeviceSettingsBundle
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		dev, err := tx.Devices().GetDevice(ctx, familyID, deviceID)
		if err != nil {
			return notFound(err)
		}
		fs, err := ensureFamilySettings(ctx, tx, familyID)
		if err != nil {
			return err
		}
		ds, _, err := loadDeviceSettings(ctx, tx, deviceID)
		if err != nil {
			return err
		}
		bundle = &DeviceSettingsBundle{
			Device:            newDeviceView(dev, s.now()),
			FamilySettings:    settings.Resolve(fs, nil, s.defaults),
			DeviceSettings:    *ds,
			EffectiveSettings: settings.Resolve(fs, ds, s.defaults),
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get device settings: %w", err)
	}
	return bundle, nil
}

// UpdateDeviceSettings 部分更新设备覆盖，生效配置写回 sensor_settings
func (s *SettingsService) UpdateDeviceSettings(ctx context.Context, familyID, deviceID string, patch settings.Patch) (*DeviceSettingsUpdate, error) {
	var out *DeviceSettingsUpdate
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		dev, err := tx.Devices().GetDevice(ctx, familyID, deviceID)
		if err != nil {
			return notFound(err)
		}
		ds, _, err := loadDeviceSettings(ctx, tx, deviceID)
		if err != nil {
			return err
		}
		settings.ApplyDeviceUpdate(ds, patch)
		if err := tx.Settings().UpsertDeviceSettings(ctx, ds); err != nil {
			return err
		}

		fs, err := ensureFamilySettings(ctx, tx, familyID)
		if err != nil {
			return err
		}
		eff := settings.Resolve(fs, ds, s.defaults)
		dev.SensorSettings = settings.Reflect(dev.SensorSettings, eff)
		if err := tx.Devices().UpdateDevice(ctx, dev); err != nil {
			return err
		}

		out = &DeviceSettingsUpdate{DeviceSettings: *ds, EffectiveSettings: eff}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update device settings: %w", err)
	}

	s.logger.Info("Device settings updated",
		zap.String("family_id", familyID),
		zap.String("device_id", deviceID),
	)
	return out, nil
}
