// Package settings 三级配置合并：默认值 -> 家庭 -> 设备
package settings

import "vigil-backend/internal/domain"

// Defaults 全局默认配置
var Defaults = domain.EffectiveSettings{
	EmergencyNumber:          "119",
	AutoCallEmergency:        true,
	AutoCallDelaySeconds:     60,
	NotifyFamilyPush:         true,
	NotifyFamilySMS:          false,
	FallDetectionSensitivity: domain.SensitivityMedium,
	VideoStreamingEnabled:    false,
}

// Resolve 合并配置：设备（已覆盖）> 家庭（已覆盖）> 默认值
// family / device 可以为 nil
func Resolve(family *domain.FamilySettings, device *domain.DeviceSettings, defaults domain.EffectiveSettings) domain.EffectiveSettings {
	eff := defaults
	if family != nil {
		eff.EmergencyNumber = family.EmergencyNumber.Or(eff.EmergencyNumber)
		eff.AutoCallEmergency = family.AutoCallEmergency.Or(eff.AutoCallEmergency)
		eff.AutoCallDelaySeconds = family.AutoCallDelaySeconds.Or(eff.AutoCallDelaySeconds)
		eff.NotifyFamilyPush = family.NotifyFamilyPush.Or(eff.NotifyFamilyPush)
		eff.NotifyFamilySMS = family.NotifyFamilySMS.Or(eff.NotifyFamilySMS)
		eff.FallDetectionSensitivity = family.FallDetectionSensitivity.Or(eff.FallDetectionSensitivity)
		eff.VideoStreamingEnabled = family.VideoStreamingEnabled.Or(eff.VideoStreamingEnabled)
	}
	if device != nil {
		eff.EmergencyNumber = device.EmergencyNumber.Or(eff.EmergencyNumber)
		eff.AutoCallEmergency = device.AutoCallEmergency.Or(eff.AutoCallEmergency)
		eff.AutoCallDelaySeconds = device.AutoCallDelaySeconds.Or(eff.AutoCallDelaySeconds)
		eff.FallDetectionSensitivity = device.FallDetectionSensitivity.Or(eff.FallDetectionSensitivity)
	}
	return eff
}

// ApplyFamilyUpdate 部分更新：只改 patch 中出现的键
func ApplyFamilyUpdate(fs *domain.FamilySettings, p Patch) {
	assign(&fs.EmergencyNumber, p.EmergencyNumber)
	assign(&fs.AutoCallEmergency, p.AutoCallEmergency)
	assign(&fs.AutoCallDelaySeconds, p.AutoCallDelaySeconds)
	assign(&fs.NotifyFamilyPush, p.NotifyFamilyPush)
	assign(&fs.NotifyFamilySMS, p.NotifyFamilySMS)
	assign(&fs.FallDetectionSensitivity, p.FallDetectionSensitivity)
	assign(&fs.VideoStreamingEnabled, p.VideoStreamingEnabled)
}

// ApplyDeviceUpdate 部分更新设备覆盖；家庭专属键（推送/短信/视频）忽略
func ApplyDeviceUpdate(ds *domain.DeviceSettings, p Patch) {
	assign(&ds.EmergencyNumber, p.EmergencyNumber)
	assign(&ds.AutoCallEmergency, p.AutoCallEmergency)
	assign(&ds.AutoCallDelaySeconds, p.AutoCallDelaySeconds)
	assign(&ds.FallDetectionSensitivity, p.FallDetectionSensitivity)
}

// Cascade 家庭更新向下传播 emergency_number / auto_call_emergency /
// auto_call_delay_seconds：仅当设备该键为继承时写入，已覆盖的设备值不动。
// 返回设备记录是否被修改。
func Cascade(ds *domain.DeviceSettings, p Patch) bool {
	changed := false
	changed = fill(&ds.EmergencyNumber, p.EmergencyNumber) || changed
	changed = fill(&ds.AutoCallEmergency, p.AutoCallEmergency) || changed
	changed = fill(&ds.AutoCallDelaySeconds, p.AutoCallDelaySeconds) || changed
	return changed
}

func assign[T any](dst *domain.Setting[T], src *domain.Setting[T]) {
	if src != nil {
		*dst = *src
	}
}

func fill[T any](dst *domain.Setting[T], src *domain.Setting[T]) bool {
	if src == nil || !src.IsSet() || dst.IsSet() {
		return false
	}
	*dst = *src
	return true
}

// Reflect 把生效配置写回 sensor_settings（保留 device_token 等其它键）
func Reflect(blob map[string]any, eff domain.EffectiveSettings) map[string]any {
	out := make(map[string]any, len(blob)+7)
	for k, v := range blob {
		out[k] = v
	}
	out[domain.KeyEmergencyNumber] = eff.EmergencyNumber
	out[domain.KeyAutoCallEmergency] = eff.AutoCallEmergency
	out[domain.KeyAutoCallDelaySeconds] = eff.AutoCallDelaySeconds
	out[domain.KeyNotifyFamilyPush] = eff.NotifyFamilyPush
	out[domain.KeyNotifyFamilySMS] = eff.NotifyFamilySMS
	out[domain.KeyFallDetectionSensitivity] = string(eff.FallDetectionSensitivity)
	out[domain.KeyVideoStreamingEnabled] = eff.VideoStreamingEnabled
	return out
}
