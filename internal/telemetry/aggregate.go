// Package telemetry 仪表盘聚合计算（纯函数，不访问存储）
package telemetry

import (
	"sort"
	"time"

	"vigil-backend/internal/domain"
)

const (
	// RollingWindow 告警统计与活动时间线的滚动窗口
	RollingWindow = 24 * time.Hour
	// AlertListLimit 仪表盘加载的最近告警数
	AlertListLimit = 50
)

// 总体状态
const (
	StatusOK       = "ok"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// TimelinePoint 按小时聚合的运动次数
type TimelinePoint struct {
	Label   string `json:"label"`
	Motions int    `json:"motions"`
}

// Activity 时间线、房间统计、访问过的房间
type Activity struct {
	Timeline     []TimelinePoint
	RoomStats    map[string]int
	RoomsVisited []string
}

// BucketMotions 按 "HH:00"（UTC）分桶；只输出有数据的小时，按首次出现的时间升序。
// 同一 label 跨天出现时合并到同一桶。
func BucketMotions(motions []*domain.RoomMotion) Activity {
	sorted := make([]*domain.RoomMotion, len(motions))
	copy(sorted, motions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	act := Activity{
		Timeline:     []TimelinePoint{},
		RoomStats:    map[string]int{},
		RoomsVisited: []string{},
	}
	index := map[string]int{}
	for _, m := range sorted {
		label := m.Time.UTC().Format("15") + ":00"
		if i, ok := index[label]; ok {
			act.Timeline[i].Motions++
		} else {
			index[label] = len(act.Timeline)
			act.Timeline = append(act.Timeline, TimelinePoint{Label: label, Motions: 1})
		}
		if _, seen := act.RoomStats[m.Room]; !seen {
			act.RoomsVisited = append(act.RoomsVisited, m.Room)
		}
		act.RoomStats[m.Room]++
	}
	sort.Strings(act.RoomsVisited)
	return act
}

// AlertCounts 最近告警的统计
type AlertCounts struct {
	Critical int // severity == high
	Last24h  int // time >= now - 24h
}

// CountAlerts 统计已加载的告警；Last24h 按时间过滤而不是取全部
func CountAlerts(alerts []*domain.Alert, now time.Time) AlertCounts {
	var c AlertCounts
	threshold := now.Add(-RollingWindow)
	for _, a := range alerts {
		if a.Severity == domain.SeverityHigh {
			c.Critical++
		}
		if !a.Time.Before(threshold) {
			c.Last24h++
		}
	}
	return c
}

// OverallStatus critical > warning > ok
func OverallStatus(c AlertCounts) string {
	switch {
	case c.Critical > 0:
		return StatusCritical
	case c.Last24h > 0:
		return StatusWarning
	default:
		return StatusOK
	}
}

// SafetyScore 安全分数与双语标签
type SafetyScore struct {
	Score   int    `json:"score"`
	LabelEN string `json:"label_en"`
	LabelKO string `json:"label_ko"`
}

// ComputeSafetyScore 100 - 20*critical - 5*max(0, last24h-critical) - (10 有设备离线)，限制在 [0,100]
func ComputeSafetyScore(c AlertCounts, anyOffline bool) SafetyScore {
	score := 100
	score -= 20 * c.Critical
	score -= 5 * max(0, c.Last24h-c.Critical)
	if anyOffline {
		score -= 10
	}
	score = min(100, max(0, score))

	s := SafetyScore{Score: score}
	switch {
	case score >= 80:
		s.LabelEN, s.LabelKO = "Good", "양호"
	case score >= 50:
		s.LabelEN, s.LabelKO = "Fair", "보통"
	default:
		s.LabelEN, s.LabelKO = "Risky", "위험"
	}
	return s
}

// DayWindows UTC 自然日边界：昨天 0 点、今天 0 点、明天 0 点
func DayWindows(now time.Time) (yesterday, today, tomorrow time.Time) {
	u := now.UTC()
	today = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -1), today, today.AddDate(0, 0, 1)
}
