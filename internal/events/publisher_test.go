package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStreamPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewStreamPublisher(client, "vigil:events", 0, zap.NewNop())
	p.now = func() time.Time { return time.Unix(1715342400, 0) }

	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, TypeAlertCreated, "fam-1", map[string]any{"alert_id": 3, "severity": "high"}))
	require.NoError(t, p.Publish(ctx, TypeDeviceSeen, "fam-1", map[string]any{"device_id": "DEV_1"}))

	msgs, err := client.XRange(ctx, "vigil:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, TypeAlertCreated, msgs[0].Values["type"])
	assert.Equal(t, "fam-1", msgs[0].Values["family_id"])
	assert.JSONEq(t, `{"alert_id":3,"severity":"high"}`, msgs[0].Values["data"].(string))
	assert.Equal(t, "1715342400", msgs[0].Values["timestamp"])
	assert.Equal(t, TypeDeviceSeen, msgs[1].Values["type"])
}

func TestStreamPublisher_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	p := NewStreamPublisher(client, "vigil:events", 0, zap.NewNop())
	err := p.Publish(context.Background(), TypeAlertCreated, "fam-1", map[string]any{})
	require.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), TypeMotion, "fam", nil))
}
