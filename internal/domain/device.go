package domain

// LastSeenNever 设备从未上报时 last_seen 的取值
const LastSeenNever = "never"

// DeviceTokenKey 设备令牌在 sensor_settings 中的键
const DeviceTokenKey = "device_token"

// Device 设备领域模型（对应 devices 表）
type Device struct {
	DeviceID string `db:"device_id"` // VARCHAR, PRIMARY KEY
	FamilyID string `db:"family_id"` // VARCHAR, NOT NULL, FK to families
	Name     string `db:"name"`
	Room     string `db:"room"`

	// 自由格式配置（JSONB）
	// 包含 device_token 以及生效配置的镜像
	SensorSettings map[string]any `db:"sensor_settings"`

	// 最近一次上报时间：ISO-8601 字符串或 "never"
	LastSeen string `db:"last_seen"`

	// 最近一次声明的状态，仅供参考；展示时由 health 重新计算
	Status string `db:"status"`
}

// Token 返回设备令牌（不存在时为空字符串）
func (d *Device) Token() string {
	if d == nil || d.SensorSettings == nil {
		return ""
	}
	tok, _ := d.SensorSettings[DeviceTokenKey].(string)
	return tok
}

// Clone 深拷贝 sensor_settings 顶层
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	out := *d
	if d.SensorSettings != nil {
		out.SensorSettings = make(map[string]any, len(d.SensorSettings))
		for k, v := range d.SensorSettings {
			out.SensorSettings[k] = v
		}
	}
	return &out
}
