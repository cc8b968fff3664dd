package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"vigil-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDevice(t *testing.T, s *MemoryStore, familyID, deviceID, room, token string) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx Tx) error {
		if err := tx.Families().EnsureFamily(context.Background(), familyID); err != nil {
			return err
		}
		return tx.Devices().CreateDevice(context.Background(), &domain.Device{
			DeviceID:       deviceID,
			FamilyID:       familyID,
			Name:           deviceID,
			Room:           room,
			SensorSettings: map[string]any{domain.DeviceTokenKey: token},
			LastSeen:       domain.LastSeenNever,
			Status:         "offline",
		})
	})
	require.NoError(t, err)
}

func TestMemoryStore_RollbackDiscardsWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.Families().EnsureFamily(ctx, "fam-1"))
		require.NoError(t, tx.Alerts().CreateAlert(ctx, &domain.Alert{FamilyID: "fam-1", Time: time.Now()}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_ = s.WithTx(ctx, func(tx Tx) error {
		list, err := tx.Alerts().ListAlerts(ctx, "fam-1", 50)
		require.NoError(t, err)
		assert.Empty(t, list)
		return nil
	})
}

func TestMemoryStore_DevicesAndToken(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedDevice(t, s, "fam-1", "DEV_B", "Kitchen", "tok-b")
	seedDevice(t, s, "fam-1", "DEV_A", "Hall", "tok-a")
	seedDevice(t, s, "fam-2", "DEV_C", "Hall", "tok-c")

	_ = s.WithTx(ctx, func(tx Tx) error {
		list, err := tx.Devices().ListDevices(ctx, "fam-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "DEV_A", list[0].DeviceID)

		dev, err := tx.Devices().FindDeviceByToken(ctx, "tok-c")
		require.NoError(t, err)
		assert.Equal(t, "fam-2", dev.FamilyID)

		_, err = tx.Devices().FindDeviceByToken(ctx, "tok-")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = tx.Devices().GetDevice(ctx, "fam-2", "DEV_A")
		assert.ErrorIs(t, err, ErrNotFound)

		err = tx.Devices().CreateDevice(ctx, &domain.Device{DeviceID: "DEV_A", FamilyID: "fam-1"})
		assert.ErrorIs(t, err, ErrDuplicate)
		return nil
	})
}

func TestMemoryStore_ReturnedDevicesAreCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedDevice(t, s, "fam-1", "DEV_A", "Hall", "tok-a")

	_ = s.WithTx(ctx, func(tx Tx) error {
		dev, err := tx.Devices().GetDevice(ctx, "fam-1", "DEV_A")
		require.NoError(t, err)
		dev.SensorSettings[domain.DeviceTokenKey] = "changed"
		return nil
	})
	_ = s.WithTx(ctx, func(tx Tx) error {
		dev, err := tx.Devices().GetDevice(ctx, "fam-1", "DEV_A")
		require.NoError(t, err)
		assert.Equal(t, "tok-a", dev.Token())
		return nil
	})
}

func TestMemoryStore_AlertsOrderAndCount(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		for i := 0; i < 3; i++ {
			if err := tx.Alerts().CreateAlert(ctx, &domain.Alert{FamilyID: "fam-1", Type: "t", Time: base.Add(time.Duration(i) * time.Hour)}); err != nil {
				return err
			}
		}
		return tx.Alerts().CreateAlert(ctx, &domain.Alert{FamilyID: "fam-2", Time: base})
	}))

	_ = s.WithTx(ctx, func(tx Tx) error {
		list, err := tx.Alerts().ListAlerts(ctx, "fam-1", 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, int64(3), list[0].AlertID)
		assert.Equal(t, int64(2), list[1].AlertID)

		n, err := tx.Alerts().CountAlertsBetween(ctx, "fam-1", base, base.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		assert.ErrorIs(t, tx.Alerts().DeleteAlert(ctx, "fam-2", 1), ErrNotFound)
		assert.NoError(t, tx.Alerts().DeleteAlert(ctx, "fam-1", 1))
		return nil
	})
}

func TestMemoryStore_MotionsJoinAndCascade(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedDevice(t, s, "fam-1", "DEV_A", "Hall", "tok-a")
	seedDevice(t, s, "fam-1", "DEV_B", "Kitchen", "tok-b")
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		for _, m := range []*domain.Motion{
			{DeviceID: "DEV_B", Time: base.Add(2 * time.Minute)},
			{DeviceID: "DEV_A", Time: base.Add(time.Minute)},
			{DeviceID: "DEV_A", Time: base.Add(-48 * time.Hour)},
		} {
			if err := tx.Motions().CreateMotion(ctx, m); err != nil {
				return err
			}
		}
		return nil
	}))

	_ = s.WithTx(ctx, func(tx Tx) error {
		list, err := tx.Motions().ListMotionsSince(ctx, "fam-1", base)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Hall", list[0].Room)
		assert.Equal(t, "Kitchen", list[1].Room)

		latest, err := tx.Motions().LatestMotionTime(ctx, "fam-1")
		require.NoError(t, err)
		assert.Equal(t, base.Add(2*time.Minute), *latest)
		return nil
	})

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		return tx.Devices().DeleteDevice(ctx, "fam-1", "DEV_B")
	}))
	_ = s.WithTx(ctx, func(tx Tx) error {
		n, err := tx.Motions().CountMotionsBetween(ctx, "fam-1", base, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	})
}

func TestMemoryStore_SubscriptionReassociates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		return tx.Subscriptions().UpsertSubscription(ctx, &domain.PushSubscription{Endpoint: "e1", FamilyID: "fam-1"})
	}))
	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		return tx.Subscriptions().UpsertSubscription(ctx, &domain.PushSubscription{Endpoint: "e1", FamilyID: "fam-2"})
	}))

	_ = s.WithTx(ctx, func(tx Tx) error {
		old, _ := tx.Subscriptions().ListSubscriptions(ctx, "fam-1")
		assert.Empty(t, old)
		cur, _ := tx.Subscriptions().ListSubscriptions(ctx, "fam-2")
		require.Len(t, cur, 1)
		assert.Equal(t, "e1", cur[0].Endpoint)
		return nil
	})
}

func TestMemoryStore_TouchKeepsSettingsAndUpdateKeepsContact(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedDevice(t, s, "fam-1", "DEV_A", "Hall", "tok-a")

	// 设置写入与心跳交错：各自只改自己的列
	err := s.WithTx(ctx, func(tx Tx) error {
		dev, err := tx.Devices().GetDevice(ctx, "fam-1", "DEV_A")
		if err != nil {
			return err
		}
		dev.SensorSettings["emergency_number"] = "112"
		dev.LastSeen = "stale"
		dev.Status = "offline"
		if err := tx.Devices().TouchDevice(ctx, "DEV_A", "2026-03-10T12:00:00Z", "online"); err != nil {
			return err
		}
		return tx.Devices().UpdateDevice(ctx, dev)
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx Tx) error {
		got, err := tx.Devices().GetDevice(ctx, "fam-1", "DEV_A")
		require.NoError(t, err)
		assert.Equal(t, "112", got.SensorSettings["emergency_number"])
		assert.Equal(t, "tok-a", got.Token())
		assert.Equal(t, "2026-03-10T12:00:00Z", got.LastSeen)
		assert.Equal(t, "online", got.Status)

		assert.ErrorIs(t, tx.Devices().TouchDevice(ctx, "DEV_MISSING", "x", "online"), ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_Members(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx Tx) error {
		f := tx.Families()
		require.ErrorIs(t, f.UpsertMember(ctx, &domain.User{Email: "x@example.com", FamilyID: "fam-none"}), ErrNotFound)

		require.NoError(t, f.EnsureFamily(ctx, "fam-1"))
		require.NoError(t, f.EnsureFamily(ctx, "fam-2"))
		require.NoError(t, f.UpsertMember(ctx, &domain.User{Email: "zoe@example.com", Name: "Zoe", FamilyID: "fam-1"}))
		require.NoError(t, f.UpsertMember(ctx, &domain.User{Email: "amy@example.com", Name: "Amy", FamilyID: "fam-1"}))
		require.NoError(t, f.UpsertMember(ctx, &domain.User{Email: "bob@example.com", Name: "Bob", FamilyID: "fam-2"}))
		// 空 name 不覆盖原值；改绑家庭
		return f.UpsertMember(ctx, &domain.User{Email: "bob@example.com", FamilyID: "fam-1"})
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx Tx) error {
		members, err := tx.Families().ListMembers(ctx, "fam-1")
		require.NoError(t, err)
		require.Len(t, members, 3)
		assert.Equal(t, "amy@example.com", members[0].Email)
		assert.Equal(t, "bob@example.com", members[1].Email)
		assert.Equal(t, "Bob", members[1].Name)
		assert.Equal(t, "zoe@example.com", members[2].Email)

		other, err := tx.Families().ListMembers(ctx, "fam-2")
		require.NoError(t, err)
		assert.Empty(t, other)
		return nil
	})
	require.NoError(t, err)
}
