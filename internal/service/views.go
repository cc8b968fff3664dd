package service

import (
	"time"

	"vigil-backend/internal/domain"
	"vigil-backend/internal/health"
	"vigil-backend/internal/report"
)

// Clock 当前时间，测试中替换
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// DeviceView 设备（前端格式），status 按 last_seen 重新计算
type DeviceView struct {
	ID             string         `json:"id"`
	FamilyID       string         `json:"family_id"`
	Name           string         `json:"name"`
	Status         string         `json:"status"`
	LastSeen       string         `json:"last_seen"`
	Room           string         `json:"room"`
	SensorSettings map[string]any `json:"sensor_settings"`
}

func newDeviceView(d *domain.Device, now time.Time) DeviceView {
	sensor := d.SensorSettings
	if sensor == nil {
		sensor = map[string]any{}
	}
	return DeviceView{
		ID:             d.DeviceID,
		FamilyID:       d.FamilyID,
		Name:           d.Name,
		Status:         string(health.ComputeStatus(d.LastSeen, now)),
		LastSeen:       d.LastSeen,
		Room:           d.Room,
		SensorSettings: sensor,
	}
}

// AlertView 告警（前端格式）
type AlertView struct {
	ID        int64  `json:"id"`
	FamilyID  string `json:"family_id"`
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Room      string `json:"room"`
	MessageEN string `json:"message_en"`
	MessageKO string `json:"message_ko"`
	Time      string `json:"time"`
}

func newAlertView(a *domain.Alert) AlertView {
	return AlertView{
		ID:        a.AlertID,
		FamilyID:  a.FamilyID,
		Type:      a.Type,
		Severity:  string(a.Severity),
		Room:      a.Room,
		MessageEN: a.MessageEN,
		MessageKO: a.MessageKO,
		Time:      a.Time.UTC().Format(report.TimeLayout),
	}
}

func newAlertViews(alerts []*domain.Alert) []AlertView {
	out := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, newAlertView(a))
	}
	return out
}
