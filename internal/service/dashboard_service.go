package service

import (
	"context"
	"fmt"
	"time"

	"vigil-backend/internal/domain"
	"vigil-backend/internal/health"
	"vigil-backend/internal/metrics"
	"vigil-backend/internal/repository"
	"vigil-backend/internal/telemetry"

	"go.uber.org/zap"
)

// DashboardService 家庭看板
type DashboardService struct {
	store   repository.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     Clock
}

// NewDashboardService 创建看板服务
func NewDashboardService(store repository.Store, m *metrics.Metrics, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		store:   store,
		metrics: m,
		logger:  logger,
		now:     utcNow,
	}
}

// Summary 看板概要
type Summary struct {
	Status         string `json:"status"`
	DevicesOnline  int    `json:"devices_online"`
	DevicesTotal   int    `json:"devices_total"`
	AlertsLast24h  int    `json:"alerts_last_24h"`
	CriticalAlerts int    `json:"critical_alerts"`
}

// ActivitySummary 活动概要
type ActivitySummary struct {
	TodayActive  bool     `json:"today_active"`
	LastMotion   string   `json:"last_motion"`
	RoomsVisited []string `json:"rooms_visited"`
}

// DayStats 单个自然日（UTC）的统计
type DayStats struct {
	Alerts  int `json:"alerts"`
	Motions int `json:"motions"`
}

// Dashboard 看板数据
type Dashboard struct {
	Summary          Summary                   `json:"summary"`
	Devices          []DeviceView              `json:"devices"`
	Alerts           []AlertView               `json:"alerts"`
	Activity         ActivitySummary           `json:"activity"`
	ActivityTimeline []telemetry.TimelinePoint `json:"activity_timeline"`
	RoomStats        map[string]int            `json:"room_stats"`
	SafetyScore      telemetry.SafetyScore     `json:"safety_score"`
	TodayStats       DayStats                  `json:"today_stats"`
	YesterdayStats   DayStats                  `json:"yesterday_stats"`
}

// snapshot 一个事务内读取的看板原始数据
type snapshot struct {
	devices    []*domain.Device
	alerts     []*domain.Alert
	motions    []*domain.RoomMotion
	lastMotion *time.Time
	today      DayStats
	yesterday  DayStats
}

// BuildDashboard 汇总设备、告警、活动；除家庭配置行的首次创建外只读
func (s *DashboardService) BuildDashboard(ctx context.Context, familyID string) (*Dashboard, error) {
	started := time.Now()
	now := s.now()

	snap, err := s.load(ctx, familyID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	devices := make([]DeviceView, 0, len(snap.devices))
	online := 0
	for _, d := range snap.devices {
		v := newDeviceView(d, now)
		if v.Status == string(health.StatusOnline) {
			online++
		}
		devices = append(devices, v)
	}

	counts := telemetry.CountAlerts(snap.alerts, now)
	act := telemetry.BucketMotions(snap.motions)

	out := &Dashboard{
		Summary: Summary{
			Status:         telemetry.OverallStatus(counts),
			DevicesOnline:  online,
			DevicesTotal:   len(devices),
			AlertsLast24h:  counts.Last24h,
			CriticalAlerts: counts.Critical,
		},
		Devices: devices,
		Alerts:  newAlertViews(snap.alerts),
		Activity: ActivitySummary{
			TodayActive:  snap.today.Motions > 0,
			LastMotion:   health.HumanizeRecency(snap.lastMotion, now),
			RoomsVisited: act.RoomsVisited,
		},
		ActivityTimeline: act.Timeline,
		RoomStats:        act.RoomStats,
		SafetyScore:      telemetry.ComputeSafetyScore(counts, online < len(devices)),
		TodayStats:       snap.today,
		YesterdayStats:   snap.yesterday,
	}

	s.metrics.DashboardBuilt(time.Since(started))
	s.logger.Debug("Dashboard built",
		zap.String("family_id", familyID),
		zap.Int("devices", len(devices)),
		zap.Int("alerts", len(out.Alerts)),
		zap.Int("motions_24h", len(snap.motions)),
	)
	return out, nil
}

func (s *DashboardService) load(ctx context.Context, familyID string, now time.Time) (*snapshot, error) {
	yesterday, today, tomorrow := telemetry.DayWindows(now)
	snap := &snapshot{}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := ensureFamilySettings(ctx, tx, familyID); err != nil {
			return err
		}

		var err error
		if snap.devices, err = tx.Devices().ListDevices(ctx, familyID); err != nil {
			return err
		}
		if snap.alerts, err = tx.Alerts().ListAlerts(ctx, familyID, telemetry.AlertListLimit); err != nil {
			return err
		}
		if snap.motions, err = tx.Motions().ListMotionsSince(ctx, familyID, now.Add(-telemetry.RollingWindow)); err != nil {
			return err
		}
		if snap.lastMotion, err = tx.Motions().LatestMotionTime(ctx, familyID); err != nil {
			return err
		}

		if snap.today.Motions, err = tx.Motions().CountMotionsBetween(ctx, familyID, today, tomorrow); err != nil {
			return err
		}
		if snap.yesterday.Motions, err = tx.Motions().CountMotionsBetween(ctx, familyID, yesterday, today); err != nil {
			return err
		}
		if snap.today.Alerts, err = tx.Alerts().CountAlertsBetween(ctx, familyID, today, tomorrow); err != nil {
			return err
		}
		if snap.yesterday.Alerts, err = tx.Alerts().CountAlertsBetween(ctx, familyID, yesterday, today); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
