// Package health 设备在线状态与时间描述
package health

import (
	"fmt"
	"strings"
	"time"

	"vigil-backend/internal/domain"
)

// OnlineGrace 最近一次上报在该窗口内视为在线
const OnlineGrace = 60 * time.Second

// Status 设备状态
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// NoMotionYet 没有任何运动记录时的描述
const NoMotionYet = "No motion yet"

// 无时区后缀的时间按 UTC 处理
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
}

// ParseTimestamp 解析 ISO-8601：支持 Z、显式偏移、无时区（按 UTC）
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == domain.LastSeenNever {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseOrNow 入站事件时间宽松解析：解析失败时使用 now
func ParseOrNow(s string, now time.Time) time.Time {
	if t, ok := ParseTimestamp(s); ok {
		return t
	}
	return now.UTC()
}

// FormatTimestamp last_seen 的存储格式
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ComputeStatus 根据最近上报时间计算状态
// 无法解析、"never"、为空或超过 OnlineGrace 都是 offline
func ComputeStatus(lastContact string, now time.Time) Status {
	t, ok := ParseTimestamp(lastContact)
	if !ok {
		return StatusOffline
	}
	if now.Sub(t) <= OnlineGrace {
		return StatusOnline
	}
	return StatusOffline
}

// HumanizeRecency 把时间差转换成描述（截断取整）
func HumanizeRecency(t *time.Time, now time.Time) string {
	if t == nil {
		return NoMotionYet
	}
	elapsed := now.Sub(*t)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%d min ago", int(elapsed/time.Minute))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%d hr ago", int(elapsed/time.Hour))
	default:
		return fmt.Sprintf("%d d ago", int(elapsed/(24*time.Hour)))
	}
}
