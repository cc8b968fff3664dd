package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vigil-backend/internal/domain"
)

type pgSettings struct {
	q dbtx
}

// 可空列 <-> 三态配置
func toSetting[T any](n sql.Null[T]) domain.Setting[T] {
	if n.Valid {
		return domain.Override(n.V)
	}
	return domain.Inherit[T]()
}

func settingArg[T any](s domain.Setting[T]) any {
	v, ok := s.Get()
	if !ok {
		return nil
	}
	return v
}

// GetFamilySettings 家庭配置行，不存在返回 ErrNotFound
func (r *pgSettings) GetFamilySettings(ctx context.Context, familyID string) (*domain.FamilySettings, error) {
	var (
		emergency   sql.Null[string]
		autoCall    sql.Null[bool]
		delay       sql.Null[int]
		push        sql.Null[bool]
		sms         sql.Null[bool]
		sensitivity sql.Null[string]
		video       sql.Null[bool]
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT emergency_number, auto_call_emergency, auto_call_delay_seconds,
		       notify_family_push, notify_family_sms, fall_detection_sensitivity,
		       video_streaming_enabled
		FROM family_settings
		WHERE family_id = $1`,
		familyID,
	).Scan(&emergency, &autoCall, &delay, &push, &sms, &sensitivity, &video)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get family settings: %w", err)
	}

	fs := &domain.FamilySettings{
		FamilyID:              familyID,
		EmergencyNumber:       toSetting(emergency),
		AutoCallEmergency:     toSetting(autoCall),
		AutoCallDelaySeconds:  toSetting(delay),
		NotifyFamilyPush:      toSetting(push),
		NotifyFamilySMS:       toSetting(sms),
		VideoStreamingEnabled: toSetting(video),
	}
	if sensitivity.Valid {
		fs.FallDetectionSensitivity = domain.Override(domain.Sensitivity(sensitivity.V))
	}
	return fs, nil
}

// UpsertFamilySettings 整行写入（last write wins）
func (r *pgSettings) UpsertFamilySettings(ctx context.Context, fs *domain.FamilySettings) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO family_settings (
			family_id, emergency_number, auto_call_emergency, auto_call_delay_seconds,
			notify_family_push, notify_family_sms, fall_detection_sensitivity,
			video_streaming_enabled, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (family_id) DO UPDATE SET
			emergency_number = EXCLUDED.emergency_number,
			auto_call_emergency = EXCLUDED.auto_call_emergency,
			auto_call_delay_seconds = EXCLUDED.auto_call_delay_seconds,
			notify_family_push = EXCLUDED.notify_family_push,
			notify_family_sms = EXCLUDED.notify_family_sms,
			fall_detection_sensitivity = EXCLUDED.fall_detection_sensitivity,
			video_streaming_enabled = EXCLUDED.video_streaming_enabled,
			updated_at = NOW()`,
		fs.FamilyID,
		settingArg(fs.EmergencyNumber),
		settingArg(fs.AutoCallEmergency),
		settingArg(fs.AutoCallDelaySeconds),
		settingArg(fs.NotifyFamilyPush),
		settingArg(fs.NotifyFamilySMS),
		sensitivityArg(fs.FallDetectionSensitivity),
		settingArg(fs.VideoStreamingEnabled),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert family settings: %w", err)
	}
	return nil
}

// GetDeviceSettings 设备覆盖行，不存在返回 ErrNotFound
func (r *pgSettings) GetDeviceSettings(ctx context.Context, deviceID string) (*domain.DeviceSettings, error) {
	var (
		emergency   sql.Null[string]
		autoCall    sql.Null[bool]
		delay       sql.Null[int]
		sensitivity sql.Null[string]
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT emergency_number, auto_call_emergency, auto_call_delay_seconds, fall_detection_sensitivity
		FROM device_settings
		WHERE device_id = $1`,
		deviceID,
	).Scan(&emergency, &autoCall, &delay, &sensitivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get device settings: %w", err)
	}

	ds := &domain.DeviceSettings{
		DeviceID:             deviceID,
		EmergencyNumber:      toSetting(emergency),
		AutoCallEmergency:    toSetting(autoCall),
		AutoCallDelaySeconds: toSetting(delay),
	}
	if sensitivity.Valid {
		ds.FallDetectionSensitivity = domain.Override(domain.Sensitivity(sensitivity.V))
	}
	return ds, nil
}

// UpsertDeviceSettings 整行写入
func (r *pgSettings) UpsertDeviceSettings(ctx context.Context, ds *domain.DeviceSettings) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO device_settings (
			device_id, emergency_number, auto_call_emergency, auto_call_delay_seconds,
			fall_detection_sensitivity, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (device_id) DO UPDATE SET
			emergency_number = EXCLUDED.emergency_number,
			auto_call_emergency = EXCLUDED.auto_call_emergency,
			auto_call_delay_seconds = EXCLUDED.auto_call_delay_seconds,
			fall_detection_sensitivity = EXCLUDED.fall_detection_sensitivity,
			updated_at = NOW()`,
		ds.DeviceID,
		settingArg(ds.EmergencyNumber),
		settingArg(ds.AutoCallEmergency),
		settingArg(ds.AutoCallDelaySeconds),
		sensitivityArg(ds.FallDetectionSensitivity),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert device settings: %w", err)
	}
	return nil
}

// DeleteDeviceSettings 删除设备覆盖（不存在不报错）
func (r *pgSettings) DeleteDeviceSettings(ctx context.Context, deviceID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM device_settings WHERE device_id = $1`, deviceID); err != nil {
		return fmt.Errorf("failed to delete device settings: %w", err)
	}
	return nil
}

func sensitivityArg(s domain.Setting[domain.Sensitivity]) any {
	v, ok := s.Get()
	if !ok {
		return nil
	}
	return string(v)
}
