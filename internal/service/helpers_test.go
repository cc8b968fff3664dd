package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"vigil-backend/internal/domain"
	"vigil-backend/internal/notify"
	"vigil-backend/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeNotifier 记录每次 fan-out；gone 中的 endpoint 返回为失效
type fakeNotifier struct {
	mu    sync.Mutex
	calls []notify.Notification
	subs  [][]*domain.PushSubscription
	gone  map[string]bool
}

func (f *fakeNotifier) Fanout(_ context.Context, subs []*domain.PushSubscription, n notify.Notification) notify.FanoutResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
	f.subs = append(f.subs, subs)

	res := notify.FanoutResult{Attempted: len(subs)}
	for _, s := range subs {
		if f.gone[s.Endpoint] {
			res.Failed++
			res.Gone = append(res.Gone, s.Endpoint)
			continue
		}
		res.Delivered++
	}
	return res
}

func (f *fakeNotifier) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, s := range f.subs {
		total += len(s)
	}
	return total
}

type publishedEvent struct {
	Type     string
	FamilyID string
	Data     any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, familyID string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, FamilyID: familyID, Data: data})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	store     *repository.MemoryStore
	notifier  *fakeNotifier
	publisher *recordingPublisher
	settings  *SettingsService
	devices   *DeviceService
	alerts    *AlertService
	push      *PushService
	dashboard *DashboardService
	family    *FamilyService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	logger := zap.NewNop()
	env := &testEnv{
		store:     store,
		notifier:  &fakeNotifier{gone: map[string]bool{}},
		publisher: &recordingPublisher{},
	}
	env.settings = NewSettingsService(store, logger)
	env.devices = NewDeviceService(store, env.publisher, nil, logger)
	env.alerts = NewAlertService(store, env.notifier, env.publisher, nil, logger)
	env.push = NewPushService(store, "test-public-key", notify.EndpointPolicy{}, logger)
	env.dashboard = NewDashboardService(store, nil, logger)
	env.family = NewFamilyService(store, logger)
	env.setNow(testNow)
	return env
}

func (e *testEnv) setNow(now time.Time) {
	clock := func() time.Time { return now }
	e.settings.now = clock
	e.devices.now = clock
	e.alerts.now = clock
	e.push.now = clock
	e.dashboard.now = clock
}

func (e *testEnv) createDevice(t *testing.T, familyID, deviceID, name, room string) *DeviceView {
	t.Helper()
	dev, err := e.devices.CreateDevice(context.Background(), familyID, CreateDeviceRequest{ID: deviceID, Name: name, Room: room})
	require.NoError(t, err)
	return dev
}

func (e *testEnv) subscribe(t *testing.T, familyID, endpoint string) {
	t.Helper()
	_, err := e.push.Subscribe(context.Background(), familyID, []byte(`{"endpoint":"`+endpoint+`"}`))
	require.NoError(t, err)
}

func (e *testEnv) countAlerts(t *testing.T, familyID string) int {
	t.Helper()
	alerts, err := e.alerts.ListAlerts(context.Background(), familyID, 500)
	require.NoError(t, err)
	return len(alerts)
}
