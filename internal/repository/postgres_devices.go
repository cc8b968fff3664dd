package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"vigil-backend/internal/domain"
)

type pgDevices struct {
	q dbtx
}

const deviceColumns = `device_id, family_id, name, room, sensor_settings, last_seen, status`

func scanDevice(row interface{ Scan(dest ...any) error }) (*domain.Device, error) {
	var (
		d    domain.Device
		blob []byte
	)
	if err := row.Scan(&d.DeviceID, &d.FamilyID, &d.Name, &d.Room, &blob, &d.LastSeen, &d.Status); err != nil {
		return nil, err
	}
	d.SensorSettings = map[string]any{}
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &d.SensorSettings); err != nil {
			return nil, fmt.Errorf("failed to decode sensor_settings for %s: %w", d.DeviceID, err)
		}
	}
	return &d, nil
}

func encodeSensorSettings(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}

// ListDevices 家庭下所有设备
func (r *pgDevices) ListDevices(ctx context.Context, familyID string) ([]*domain.Device, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE family_id = $1 ORDER BY device_id`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var out []*domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}
	return out, nil
}

// GetDevice 按 (family, device) 获取
func (r *pgDevices) GetDevice(ctx context.Context, familyID, deviceID string) (*domain.Device, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE family_id = $1 AND device_id = $2`,
		familyID, deviceID,
	)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

// FindDeviceByToken 走 (sensor_settings->>'device_token') 表达式索引
func (r *pgDevices) FindDeviceByToken(ctx context.Context, token string) (*domain.Device, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	row := r.q.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE sensor_settings->>'device_token' = $1`,
		token,
	)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find device by token: %w", err)
	}
	return d, nil
}

// CreateDevice 新建设备，device_id 冲突返回 ErrDuplicate
func (r *pgDevices) CreateDevice(ctx context.Context, d *domain.Device) error {
	blob, err := encodeSensorSettings(d.SensorSettings)
	if err != nil {
		return fmt.Errorf("failed to encode sensor_settings: %w", err)
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO devices (device_id, family_id, name, room, sensor_settings, last_seen, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.DeviceID, d.FamilyID, d.Name, d.Room, blob, d.LastSeen, d.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// UpdateDevice 更新用户可编辑字段；last_seen/status 只由 TouchDevice 写
func (r *pgDevices) UpdateDevice(ctx context.Context, d *domain.Device) error {
	blob, err := encodeSensorSettings(d.SensorSettings)
	if err != nil {
		return fmt.Errorf("failed to encode sensor_settings: %w", err)
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE devices SET name = $3, room = $4, sensor_settings = $5
		 WHERE family_id = $1 AND device_id = $2`,
		d.FamilyID, d.DeviceID, d.Name, d.Room, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	return expectAffected(res)
}

// TouchDevice 刷新最近联系时间
func (r *pgDevices) TouchDevice(ctx context.Context, deviceID, lastSeen, status string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE devices SET last_seen = $2, status = $3 WHERE device_id = $1`,
		deviceID, lastSeen, status,
	)
	if err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}
	return expectAffected(res)
}

// DeleteDevice 删除设备（device_settings / motions 由外键级联）
func (r *pgDevices) DeleteDevice(ctx context.Context, familyID, deviceID string) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM devices WHERE family_id = $1 AND device_id = $2`,
		familyID, deviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
