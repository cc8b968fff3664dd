package domain

import "time"

// Severity 告警级别
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid 是否为已知级别
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Alert 告警领域模型（对应 alerts 表），创建后不可修改
type Alert struct {
	AlertID   int64     `db:"alert_id"`   // BIGSERIAL, PRIMARY KEY
	FamilyID  string    `db:"family_id"`  // FK to families
	Type      string    `db:"type"`       // fall / motion / sos / demo / ...
	Severity  Severity  `db:"severity"`   // low | medium | high
	Room      string    `db:"room"`
	MessageEN string    `db:"message_en"`
	MessageKO string    `db:"message_ko"`
	Time      time.Time `db:"time"` // TIMESTAMPTZ, 服务端时间 (UTC)
}
