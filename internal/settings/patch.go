package settings

import (
	"encoding/json"
	"fmt"

	"vigil-backend/internal/domain"
)

// Patch 一次部分更新：nil 表示键未出现；出现且为 null 表示恢复继承
type Patch struct {
	EmergencyNumber          *domain.Setting[string]
	AutoCallEmergency        *domain.Setting[bool]
	AutoCallDelaySeconds     *domain.Setting[int]
	NotifyFamilyPush         *domain.Setting[bool]
	NotifyFamilySMS          *domain.Setting[bool]
	FallDetectionSensitivity *domain.Setting[domain.Sensitivity]
	VideoStreamingEnabled    *domain.Setting[bool]
}

// FieldError 配置键类型或取值错误
type FieldError struct {
	Key string
	Err error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid value for %s: %v", e.Key, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ParsePatch 解析 JSON 对象；未知键忽略
func ParsePatch(data []byte) (Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Patch{}, fmt.Errorf("settings payload must be a JSON object: %w", err)
	}

	var p Patch
	if err := decodeKey(raw, domain.KeyEmergencyNumber, &p.EmergencyNumber); err != nil {
		return Patch{}, err
	}
	if err := decodeKey(raw, domain.KeyAutoCallEmergency, &p.AutoCallEmergency); err != nil {
		return Patch{}, err
	}
	if err := decodeKey(raw, domain.KeyAutoCallDelaySeconds, &p.AutoCallDelaySeconds); err != nil {
		return Patch{}, err
	}
	if err := decodeKey(raw, domain.KeyNotifyFamilyPush, &p.NotifyFamilyPush); err != nil {
		return Patch{}, err
	}
	if err := decodeKey(raw, domain.KeyNotifyFamilySMS, &p.NotifyFamilySMS); err != nil {
		return Patch{}, err
	}
	if err := decodeKey(raw, domain.KeyFallDetectionSensitivity, &p.FallDetectionSensitivity); err != nil {
		return Patch{}, err
	}
	if err := decodeKey(raw, domain.KeyVideoStreamingEnabled, &p.VideoStreamingEnabled); err != nil {
		return Patch{}, err
	}

	if s := p.FallDetectionSensitivity; s != nil {
		if v, ok := s.Get(); ok && !v.Valid() {
			return Patch{}, &FieldError{Key: domain.KeyFallDetectionSensitivity, Err: fmt.Errorf("must be one of low, medium, high")}
		}
	}
	if s := p.AutoCallDelaySeconds; s != nil {
		if v, ok := s.Get(); ok && v < 0 {
			return Patch{}, &FieldError{Key: domain.KeyAutoCallDelaySeconds, Err: fmt.Errorf("must not be negative")}
		}
	}
	return p, nil
}

func decodeKey[T any](raw map[string]json.RawMessage, key string, dst **domain.Setting[T]) error {
	msg, ok := raw[key]
	if !ok {
		return nil
	}
	s := new(domain.Setting[T])
	if err := json.Unmarshal(msg, s); err != nil {
		return &FieldError{Key: key, Err: err}
	}
	*dst = s
	return nil
}

// Empty patch 中没有任何已识别键
func (p Patch) Empty() bool {
	return p.EmergencyNumber == nil && p.AutoCallEmergency == nil && p.AutoCallDelaySeconds == nil &&
		p.NotifyFamilyPush == nil && p.NotifyFamilySMS == nil &&
		p.FallDetectionSensitivity == nil && p.VideoStreamingEnabled == nil
}
