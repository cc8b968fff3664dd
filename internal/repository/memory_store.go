package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"vigil-backend/internal/domain"
)

// MemoryStore 无数据库时的内存实现（本地开发、测试）
// 事务：全局互斥 + 写时复制，fn 成功才替换快照
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	families       map[string]time.Time
	devices        map[string]*domain.Device // device_id -> device
	familySettings map[string]*domain.FamilySettings
	deviceSettings map[string]*domain.DeviceSettings
	alerts         []domain.Alert
	motions        []domain.Motion
	subscriptions  map[string]*domain.PushSubscription // endpoint -> sub
	users          map[string]*domain.User             // email -> user
	nextAlertID    int64
	nextMotionID   int64
}

// NewMemoryStore 创建空的内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		families:       map[string]time.Time{},
		devices:        map[string]*domain.Device{},
		familySettings: map[string]*domain.FamilySettings{},
		deviceSettings: map[string]*domain.DeviceSettings{},
		subscriptions:  map[string]*domain.PushSubscription{},
		users:          map[string]*domain.User{},
		nextAlertID:    1,
		nextMotionID:   1,
	}}
}

var _ Store = (*MemoryStore)(nil)

// WithTx 串行执行，失败时丢弃修改
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&memTx{d: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (d *memData) clone() *memData {
	out := &memData{
		families:       make(map[string]time.Time, len(d.families)),
		devices:        make(map[string]*domain.Device, len(d.devices)),
		familySettings: make(map[string]*domain.FamilySettings, len(d.familySettings)),
		deviceSettings: make(map[string]*domain.DeviceSettings, len(d.deviceSettings)),
		alerts:         append([]domain.Alert(nil), d.alerts...),
		motions:        append([]domain.Motion(nil), d.motions...),
		subscriptions:  make(map[string]*domain.PushSubscription, len(d.subscriptions)),
		users:          make(map[string]*domain.User, len(d.users)),
		nextAlertID:    d.nextAlertID,
		nextMotionID:   d.nextMotionID,
	}
	for k, v := range d.families {
		out.families[k] = v
	}
	for k, v := range d.devices {
		out.devices[k] = v.Clone()
	}
	for k, v := range d.familySettings {
		c := *v
		out.familySettings[k] = &c
	}
	for k, v := range d.deviceSettings {
		c := *v
		out.deviceSettings[k] = &c
	}
	for k, v := range d.subscriptions {
		c := *v
		out.subscriptions[k] = &c
	}
	for k, v := range d.users {
		c := *v
		out.users[k] = &c
	}
	return out
}

type memTx struct {
	d *memData
}

func (t *memTx) Families() FamiliesRepository           { return memFamilies{t.d} }
func (t *memTx) Devices() DevicesRepository             { return memDevices{t.d} }
func (t *memTx) Settings() SettingsRepository           { return memSettings{t.d} }
func (t *memTx) Alerts() AlertsRepository               { return memAlerts{t.d} }
func (t *memTx) Motions() MotionsRepository             { return memMotions{t.d} }
func (t *memTx) Subscriptions() SubscriptionsRepository { return memSubscriptions{t.d} }

type memFamilies struct{ d *memData }

func (r memFamilies) EnsureFamily(_ context.Context, familyID string) error {
	if _, ok := r.d.families[familyID]; !ok {
		r.d.families[familyID] = time.Now().UTC()
	}
	return nil
}

func (r memFamilies) ListMembers(_ context.Context, familyID string) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range r.d.users {
		if u.FamilyID == familyID {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r memFamilies) UpsertMember(_ context.Context, u *domain.User) error {
	if _, ok := r.d.families[u.FamilyID]; !ok {
		return ErrNotFound
	}
	if cur, ok := r.d.users[u.Email]; ok && u.Name == "" {
		u.Name = cur.Name
	}
	c := *u
	r.d.users[u.Email] = &c
	return nil
}

type memDevices struct{ d *memData }

func (r memDevices) ListDevices(_ context.Context, familyID string) ([]*domain.Device, error) {
	var out []*domain.Device
	for _, dev := range r.d.devices {
		if dev.FamilyID == familyID {
			out = append(out, dev.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (r memDevices) GetDevice(_ context.Context, familyID, deviceID string) (*domain.Device, error) {
	dev, ok := r.d.devices[deviceID]
	if !ok || dev.FamilyID != familyID {
		return nil, ErrNotFound
	}
	return dev.Clone(), nil
}

// FindDeviceByToken 线性扫描，内存规模下足够
func (r memDevices) FindDeviceByToken(_ context.Context, token string) (*domain.Device, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	for _, dev := range r.d.devices {
		if dev.Token() == token {
			return dev.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r memDevices) CreateDevice(_ context.Context, dev *domain.Device) error {
	if _, ok := r.d.devices[dev.DeviceID]; ok {
		return ErrDuplicate
	}
	if tok := dev.Token(); tok != "" {
		for _, other := range r.d.devices {
			if other.Token() == tok {
				return ErrDuplicate
			}
		}
	}
	r.d.devices[dev.DeviceID] = dev.Clone()
	return nil
}

func (r memDevices) UpdateDevice(_ context.Context, dev *domain.Device) error {
	cur, ok := r.d.devices[dev.DeviceID]
	if !ok || cur.FamilyID != dev.FamilyID {
		return ErrNotFound
	}
	next := dev.Clone()
	next.LastSeen = cur.LastSeen
	next.Status = cur.Status
	r.d.devices[dev.DeviceID] = next
	return nil
}

func (r memDevices) TouchDevice(_ context.Context, deviceID, lastSeen, status string) error {
	cur, ok := r.d.devices[deviceID]
	if !ok {
		return ErrNotFound
	}
	cur.LastSeen = lastSeen
	cur.Status = status
	return nil
}

func (r memDevices) DeleteDevice(_ context.Context, familyID, deviceID string) error {
	cur, ok := r.d.devices[deviceID]
	if !ok || cur.FamilyID != familyID {
		return ErrNotFound
	}
	delete(r.d.devices, deviceID)
	delete(r.d.deviceSettings, deviceID)
	kept := r.d.motions[:0]
	for _, m := range r.d.motions {
		if m.DeviceID != deviceID {
			kept = append(kept, m)
		}
	}
	r.d.motions = kept
	return nil
}

type memSettings struct{ d *memData }

func (r memSettings) GetFamilySettings(_ context.Context, familyID string) (*domain.FamilySettings, error) {
	fs, ok := r.d.familySettings[familyID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *fs
	return &c, nil
}

func (r memSettings) UpsertFamilySettings(_ context.Context, fs *domain.FamilySettings) error {
	c := *fs
	r.d.familySettings[fs.FamilyID] = &c
	return nil
}

func (r memSettings) GetDeviceSettings(_ context.Context, deviceID string) (*domain.DeviceSettings, error) {
	ds, ok := r.d.deviceSettings[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *ds
	return &c, nil
}

func (r memSettings) UpsertDeviceSettings(_ context.Context, ds *domain.DeviceSettings) error {
	c := *ds
	r.d.deviceSettings[ds.DeviceID] = &c
	return nil
}

func (r memSettings) DeleteDeviceSettings(_ context.Context, deviceID string) error {
	delete(r.d.deviceSettings, deviceID)
	return nil
}

type memAlerts struct{ d *memData }

func (r memAlerts) CreateAlert(_ context.Context, a *domain.Alert) error {
	a.AlertID = r.d.nextAlertID
	r.d.nextAlertID++
	r.d.alerts = append(r.d.alerts, *a)
	return nil
}

func (r memAlerts) ListAlerts(_ context.Context, familyID string, limit int) ([]*domain.Alert, error) {
	var out []*domain.Alert
	for i := range r.d.alerts {
		if r.d.alerts[i].FamilyID == familyID {
			a := r.d.alerts[i]
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Time.Equal(out[j].Time) {
			return out[i].Time.After(out[j].Time)
		}
		return out[i].AlertID > out[j].AlertID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memAlerts) CountAlertsBetween(_ context.Context, familyID string, from, to time.Time) (int, error) {
	n := 0
	for _, a := range r.d.alerts {
		if a.FamilyID == familyID && !a.Time.Before(from) && a.Time.Before(to) {
			n++
		}
	}
	return n, nil
}

func (r memAlerts) DeleteAlert(_ context.Context, familyID string, alertID int64) error {
	for i, a := range r.d.alerts {
		if a.AlertID == alertID && a.FamilyID == familyID {
			r.d.alerts = append(r.d.alerts[:i], r.d.alerts[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type memMotions struct{ d *memData }

func (r memMotions) CreateMotion(_ context.Context, m *domain.Motion) error {
	if _, ok := r.d.devices[m.DeviceID]; !ok {
		return ErrNotFound
	}
	m.MotionID = r.d.nextMotionID
	r.d.nextMotionID++
	r.d.motions = append(r.d.motions, *m)
	return nil
}

// familyMotions 属于家庭的运动事件（带房间）
func (r memMotions) familyMotions(familyID string) []*domain.RoomMotion {
	var out []*domain.RoomMotion
	for _, m := range r.d.motions {
		dev, ok := r.d.devices[m.DeviceID]
		if !ok || dev.FamilyID != familyID {
			continue
		}
		out = append(out, &domain.RoomMotion{DeviceID: m.DeviceID, Room: dev.Room, Time: m.Time})
	}
	return out
}

func (r memMotions) ListMotionsSince(_ context.Context, familyID string, since time.Time) ([]*domain.RoomMotion, error) {
	var out []*domain.RoomMotion
	for _, m := range r.familyMotions(familyID) {
		if !m.Time.Before(since) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (r memMotions) CountMotionsBetween(_ context.Context, familyID string, from, to time.Time) (int, error) {
	n := 0
	for _, m := range r.familyMotions(familyID) {
		if !m.Time.Before(from) && m.Time.Before(to) {
			n++
		}
	}
	return n, nil
}

func (r memMotions) LatestMotionTime(_ context.Context, familyID string) (*time.Time, error) {
	var latest *time.Time
	for _, m := range r.familyMotions(familyID) {
		if latest == nil || m.Time.After(*latest) {
			t := m.Time
			latest = &t
		}
	}
	return latest, nil
}

type memSubscriptions struct{ d *memData }

func (r memSubscriptions) ListSubscriptions(_ context.Context, familyID string) ([]*domain.PushSubscription, error) {
	var out []*domain.PushSubscription
	for _, s := range r.d.subscriptions {
		if s.FamilyID == familyID {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Endpoint < out[j].Endpoint
	})
	return out, nil
}

func (r memSubscriptions) UpsertSubscription(_ context.Context, s *domain.PushSubscription) error {
	if cur, ok := r.d.subscriptions[s.Endpoint]; ok {
		s.CreatedAt = cur.CreatedAt
	} else if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	c := *s
	c.Subscription = append([]byte(nil), s.Subscription...)
	r.d.subscriptions[s.Endpoint] = &c
	return nil
}

func (r memSubscriptions) DeleteSubscription(_ context.Context, endpoint string) error {
	delete(r.d.subscriptions, endpoint)
	return nil
}
