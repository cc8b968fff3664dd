package domain

import (
	"encoding/json"
	"time"
)

// PushSubscription 推送订阅（对应 push_subscriptions 表）
// endpoint 是唯一标识；family_id 可变（重新订阅会改绑家庭）
type PushSubscription struct {
	Endpoint     string          `db:"endpoint"`     // TEXT, PRIMARY KEY
	FamilyID     string          `db:"family_id"`    // FK to families
	Subscription json.RawMessage `db:"subscription"` // JSONB, 浏览器 PushSubscription 原样保存
	CreatedAt    time.Time       `db:"created_at"`
}
