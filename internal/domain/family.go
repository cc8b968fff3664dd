package domain

import "time"

// Family 家庭领域模型（对应 families 表）
// 根聚合：设备、设置、告警、推送订阅都按 family_id 隔离
type Family struct {
	FamilyID  string    `db:"family_id"`  // VARCHAR, PRIMARY KEY
	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ
}
