package service

import (
	"context"
	"testing"

	"vigil-backend/internal/notify"
	"vigil-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_MissingEndpoint(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{}`, `{"endpoint":"  "}`, `not-json`, ``} {
		_, err := env.push.Subscribe(context.Background(), "fam-1", []byte(body))
		assert.True(t, IsValidation(err), body)
	}
	_, err := env.push.Subscribe(context.Background(), "fam-1", []byte(`{}`))
	assert.EqualError(t, err, "Missing subscription endpoint")
}

func TestSubscribe_ReassociatesFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.subscribe(t, "fam-1", "https://push.example/a")
	env.subscribe(t, "fam-2", "https://push.example/a")

	err := env.store.WithTx(ctx, func(tx repository.Tx) error {
		subs, err := tx.Subscriptions().ListSubscriptions(ctx, "fam-1")
		require.NoError(t, err)
		assert.Empty(t, subs)

		subs, err = tx.Subscriptions().ListSubscriptions(ctx, "fam-2")
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.JSONEq(t, `{"endpoint":"https://push.example/a"}`, string(subs[0].Subscription))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "test-public-key", env.push.PublicKey())
}

func TestSubscribe_RejectsInternalEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, endpoint := range []string{
		"http://push.example/a",
		"https://localhost:9000/hook",
		"https://127.0.0.1/hook",
		"https://169.254.169.254/latest/meta-data",
		"https://10.0.0.7/hook",
	} {
		_, err := env.push.Subscribe(ctx, "fam-1", []byte(`{"endpoint":"`+endpoint+`"}`))
		require.Error(t, err, endpoint)
		assert.EqualError(t, err, "Invalid subscription endpoint")
	}

	err := env.store.WithTx(ctx, func(tx repository.Tx) error {
		subs, err := tx.Subscriptions().ListSubscriptions(ctx, "fam-1")
		require.NoError(t, err)
		assert.Empty(t, subs)
		return nil
	})
	require.NoError(t, err)
}

func TestSubscribe_WebhookAllowlist(t *testing.T) {
	env := newTestEnv(t)
	env.push.policy = notify.EndpointPolicy{WebhookHosts: []string{"hooks.example"}}
	ctx := context.Background()

	_, err := env.push.Subscribe(ctx, "fam-1", []byte(`{"endpoint":"https://hooks.example/f1"}`))
	require.NoError(t, err)
	_, err = env.push.Subscribe(ctx, "fam-1", []byte(`{"endpoint":"https://elsewhere.example/f1"}`))
	assert.True(t, IsValidation(err))

	// 浏览器订阅带密钥，走推送服务
	_, err = env.push.Subscribe(ctx, "fam-1", []byte(`{"endpoint":"https://fcm.googleapis.com/fcm/send/x","keys":{"p256dh":"k","auth":"a"}}`))
	require.NoError(t, err)
}
