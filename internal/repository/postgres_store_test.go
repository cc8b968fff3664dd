package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"vigil-backend/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewPostgresStore(db, zap.NewNop())
	return db, mock, store
}

func TestPostgresStore_CommitOnSuccess(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO families (family_id)`)).
		WithArgs("fam-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(tx Tx) error {
		return tx.Families().EnsureFamily(context.Background(), "fam-1")
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RollbackOnError(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM devices WHERE family_id = $1 AND device_id = $2`)).
		WithArgs("fam-1", "DEV_X").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx Tx) error {
		_, err := tx.Devices().GetDevice(context.Background(), "fam-1", "DEV_X")
		return err
	})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDevices_FindDeviceByToken(t *testing.T) {
	db, mock, _ := setupMockStore(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"device_id", "family_id", "name", "room", "sensor_settings", "last_seen", "status",
	}).AddRow("DEV_1", "fam-1", "Hall sensor", "Hall", []byte(`{"device_token":"tok-1","emergency_number":"119"}`), "never", "offline")

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE sensor_settings->>'device_token' = $1`)).
		WithArgs("tok-1").
		WillReturnRows(rows)

	repo := &pgDevices{q: db}
	dev, err := repo.FindDeviceByToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "DEV_1", dev.DeviceID)
	assert.Equal(t, "tok-1", dev.Token())
	assert.Equal(t, "119", dev.SensorSettings["emergency_number"])

	_, err = repo.FindDeviceByToken(context.Background(), "")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDevices_CreateDuplicate(t *testing.T) {
	db, mock, _ := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO devices`)).
		WithArgs("DEV_1", "fam-1", "Hall sensor", "Hall", sqlmock.AnyArg(), "never", "offline").
		WillReturnError(&pq.Error{Code: "23505"})

	repo := &pgDevices{q: db}
	err := repo.CreateDevice(context.Background(), &domain.Device{
		DeviceID: "DEV_1", FamilyID: "fam-1", Name: "Hall sensor", Room: "Hall",
		LastSeen: "never", Status: "offline",
	})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDevices_UpdateMissing(t *testing.T) {
	db, mock, _ := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE devices SET name = $3, room = $4, sensor_settings = $5`)).
		WithArgs("fam-1", "DEV_1", "", "", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := &pgDevices{q: db}
	err := repo.UpdateDevice(context.Background(), &domain.Device{DeviceID: "DEV_1", FamilyID: "fam-1"})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDevices_TouchOnlyWritesContactColumns(t *testing.T) {
	db, mock, _ := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE devices SET last_seen = $2, status = $3 WHERE device_id = $1`)).
		WithArgs("DEV_1", "2026-03-10T12:00:00Z", "online").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE devices SET last_seen = $2, status = $3 WHERE device_id = $1`)).
		WithArgs("DEV_GONE", "2026-03-10T12:00:00Z", "online").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := &pgDevices{q: db}
	require.NoError(t, repo.TouchDevice(context.Background(), "DEV_1", "2026-03-10T12:00:00Z", "online"))
	require.ErrorIs(t, repo.TouchDevice(context.Background(), "DEV_GONE", "2026-03-10T12:00:00Z", "online"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFamilies_ListMembersOrderedByEmail(t *testing.T) {
	db, mock, _ := setupMockStore(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"email", "name", "family_id"}).
		AddRow("amy@example.com", "Amy", "fam-1").
		AddRow("bob@example.com", "", "fam-1")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT email, name, family_id FROM users WHERE family_id = $1 ORDER BY email`)).
		WithArgs("fam-1").
		WillReturnRows(rows)

	repo := &pgFamilies{q: db}
	members, err := repo.ListMembers(context.Background(), "fam-1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "amy@example.com", members[0].Email)
	assert.Equal(t, "Amy", members[0].Name)
	assert.Equal(t, "", members[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFamilies_UpsertMember(t *testing.T) {
	db, mock, _ := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (email) DO UPDATE`)).
		WithArgs("amy@example.com", "", "fam-1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Amy"))

	repo := &pgFamilies{q: db}
	u := &domain.User{Email: "amy@example.com", FamilyID: "fam-1"}
	require.NoError(t, repo.UpsertMember(context.Background(), u))
	assert.Equal(t, "Amy", u.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSettings_FamilyNullsInherit(t *testing.T) {
	db, mock, _ := setupMockStore(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"emergency_number", "auto_call_emergency", "auto_call_delay_seconds",
		"notify_family_push", "notify_family_sms", "fall_detection_sensitivity", "video_streaming_enabled",
	}).AddRow("112", nil, int64(30), nil, false, "high", nil)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM family_settings`)).
		WithArgs("fam-1").
		WillReturnRows(rows)

	repo := &pgSettings{q: db}
	fs, err := repo.GetFamilySettings(context.Background(), "fam-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Override("112"), fs.EmergencyNumber)
	assert.False(t, fs.AutoCallEmergency.IsSet())
	assert.Equal(t, domain.Override(30), fs.AutoCallDelaySeconds)
	assert.Equal(t, domain.Override(false), fs.NotifyFamilySMS)
	assert.Equal(t, domain.Override(domain.SensitivityHigh), fs.FallDetectionSensitivity)
	assert.False(t, fs.VideoStreamingEnabled.IsSet())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSettings_UpsertDeviceWritesNulls(t *testing.T) {
	db, mock, _ := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO device_settings`)).
		WithArgs("DEV_1", "112", nil, 15, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := &pgSettings{q: db}
	err := repo.UpsertDeviceSettings(context.Background(), &domain.DeviceSettings{
		DeviceID:             "DEV_1",
		EmergencyNumber:      domain.Override("112"),
		AutoCallDelaySeconds: domain.Override(15),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSettings_DeviceNotFound(t *testing.T) {
	db, mock, _ := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM device_settings`)).
		WithArgs("DEV_1").
		WillReturnError(sql.ErrNoRows)

	repo := &pgSettings{q: db}
	_, err := repo.GetDeviceSettings(context.Background(), "DEV_1")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestPgAlerts_CreateAndList(t *testing.T) {
	db, mock, _ := setupMockStore(t)
	defer db.Close()

	ts := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO alerts`)).
		WithArgs("fam-1", "fall", "high", "Bathroom", "Fall detected", "낙상 감지", ts).
		WillReturnRows(sqlmock.NewRows([]string{"alert_id"}).AddRow(int64(7)))

	rows := sqlmock.NewRows([]string{"alert_id", "family_id", "type", "severity", "room", "message_en", "message_ko", "time"}).
		AddRow(int64(7), "fam-1", "fall", "high", "Bathroom", "Fall detected", "낙상 감지", ts).
		AddRow(int64(6), "fam-1", "sos", "medium", "Hall", "SOS", "SOS", ts.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY time DESC, alert_id DESC`)).
		WithArgs("fam-1", 50).
		WillReturnRows(rows)

	repo := &pgAlerts{q: db}
	a := &domain.Alert{
		FamilyID: "fam-1", Type: "fall", Severity: domain.SeverityHigh, Room: "Bathroom",
		MessageEN: "Fall detected", MessageKO: "낙상 감지", Time: ts,
	}
	require.NoError(t, repo.CreateAlert(context.Background(), a))
	assert.Equal(t, int64(7), a.AlertID)

	list, err := repo.ListAlerts(context.Background(), "fam-1", 50)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(7), list[0].AlertID)
	assert.Equal(t, domain.SeverityHigh, list[0].Severity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgMotions_LatestNone(t *testing.T) {
	db, mock, _ := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(m.time)`)).
		WithArgs("fam-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	repo := &pgMotions{q: db}
	latest, err := repo.LatestMotionTime(context.Background(), "fam-1")
	require.NoError(t, err)
	assert.Nil(t, latest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSubscriptions_Upsert(t *testing.T) {
	db, mock, _ := setupMockStore(t)
	defer db.Close()

	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (endpoint) DO UPDATE`)).
		WithArgs("https://push.example/abc", "fam-2", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	repo := &pgSubscriptions{q: db}
	sub := &domain.PushSubscription{
		Endpoint:     "https://push.example/abc",
		FamilyID:     "fam-2",
		Subscription: []byte(`{"endpoint":"https://push.example/abc"}`),
	}
	require.NoError(t, repo.UpsertSubscription(context.Background(), sub))
	assert.Equal(t, created, sub.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
