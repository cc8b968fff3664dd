package domain

import "time"

// Motion 运动事件（对应 motions 表），只追加
type Motion struct {
	MotionID int64     `db:"motion_id"`
	DeviceID string    `db:"device_id"`
	Time     time.Time `db:"time"` // TIMESTAMPTZ
}

// RoomMotion 带房间信息的运动事件（motions JOIN devices）
type RoomMotion struct {
	DeviceID string
	Room     string
	Time     time.Time
}
