package domain

import (
	"bytes"
	"encoding/json"
)

// Setting 单个配置项的三态取值：继承（未设置）或显式覆盖
type Setting[T any] struct {
	value T
	set   bool
}

// Override 显式覆盖
func Override[T any](v T) Setting[T] {
	return Setting[T]{value: v, set: true}
}

// Inherit 继承上一层
func Inherit[T any]() Setting[T] {
	return Setting[T]{}
}

// Get 返回值以及是否被覆盖
func (s Setting[T]) Get() (T, bool) {
	return s.value, s.set
}

// IsSet 是否为显式覆盖
func (s Setting[T]) IsSet() bool {
	return s.set
}

// Or 继承时返回 fallback
func (s Setting[T]) Or(fallback T) T {
	if s.set {
		return s.value
	}
	return fallback
}

// MarshalJSON 继承输出 null
func (s Setting[T]) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

// UnmarshalJSON null 表示继承
func (s *Setting[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Inherit[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Override(v)
	return nil
}

// Sensitivity 跌倒检测灵敏度
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Valid 是否为 low|medium|high
func (s Sensitivity) Valid() bool {
	switch s {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return true
	}
	return false
}

// 已识别的配置键
const (
	KeyEmergencyNumber          = "emergency_number"
	KeyAutoCallEmergency        = "auto_call_emergency"
	KeyAutoCallDelaySeconds     = "auto_call_delay_seconds"
	KeyNotifyFamilyPush         = "notify_family_push"
	KeyNotifyFamilySMS          = "notify_family_sms"
	KeyFallDetectionSensitivity = "fall_detection_sensitivity"
	KeyVideoStreamingEnabled    = "video_streaming_enabled"
)

// FamilySettings 家庭级配置（对应 family_settings 表），每个家庭一行
type FamilySettings struct {
	FamilyID                 string               `json:"-" db:"family_id"`
	EmergencyNumber          Setting[string]      `json:"emergency_number" db:"emergency_number"`
	AutoCallEmergency        Setting[bool]        `json:"auto_call_emergency" db:"auto_call_emergency"`
	AutoCallDelaySeconds     Setting[int]         `json:"auto_call_delay_seconds" db:"auto_call_delay_seconds"`
	NotifyFamilyPush         Setting[bool]        `json:"notify_family_push" db:"notify_family_push"`
	NotifyFamilySMS          Setting[bool]        `json:"notify_family_sms" db:"notify_family_sms"`
	FallDetectionSensitivity Setting[Sensitivity] `json:"fall_detection_sensitivity" db:"fall_detection_sensitivity"`
	VideoStreamingEnabled    Setting[bool]        `json:"video_streaming_enabled" db:"video_streaming_enabled"`
}

// DeviceSettings 设备级覆盖（对应 device_settings 表），仅包含可覆盖的四个键
type DeviceSettings struct {
	DeviceID                 string               `json:"-" db:"device_id"`
	EmergencyNumber          Setting[string]      `json:"emergency_number" db:"emergency_number"`
	AutoCallEmergency        Setting[bool]        `json:"auto_call_emergency" db:"auto_call_emergency"`
	AutoCallDelaySeconds     Setting[int]         `json:"auto_call_delay_seconds" db:"auto_call_delay_seconds"`
	FallDetectionSensitivity Setting[Sensitivity] `json:"fall_detection_sensitivity" db:"fall_detection_sensitivity"`
}

// EffectiveSettings 合并后的生效配置，所有键都有值
type EffectiveSettings struct {
	EmergencyNumber          string      `json:"emergency_number"`
	AutoCallEmergency        bool        `json:"auto_call_emergency"`
	AutoCallDelaySeconds     int         `json:"auto_call_delay_seconds"`
	NotifyFamilyPush         bool        `json:"notify_family_push"`
	NotifyFamilySMS          bool        `json:"notify_family_sms"`
	FallDetectionSensitivity Sensitivity `json:"fall_detection_sensitivity"`
	VideoStreamingEnabled    bool        `json:"video_streaming_enabled"`
}
