package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vigil-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookDeliverer_PostsPayload(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	d := NewWebhookDeliverer(time.Second, EndpointPolicy{AllowPrivateNetwork: true})
	err := d.Deliver(context.Background(), &domain.PushSubscription{Endpoint: srv.URL}, []byte(`{"title":"t"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"t"}`, string(got))
}

func TestWebhookDeliverer_Gone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	d := NewWebhookDeliverer(time.Second, EndpointPolicy{AllowPrivateNetwork: true})
	err := d.Deliver(context.Background(), &domain.PushSubscription{Endpoint: srv.URL}, []byte(`{}`))
	require.ErrorIs(t, err, ErrEndpointGone)
}

func TestWebhookDeliverer_RefusesLoopbackAtDial(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hit = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewWebhookDeliverer(time.Second, EndpointPolicy{})
	err := d.Deliver(context.Background(), &domain.PushSubscription{Endpoint: srv.URL}, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrUnsafeEndpoint.Error())
	assert.False(t, hit)
}

func TestStatusError(t *testing.T) {
	assert.NoError(t, statusError(http.StatusCreated))
	assert.ErrorIs(t, statusError(http.StatusNotFound), ErrEndpointGone)
	assert.Error(t, statusError(http.StatusTooManyRequests))
}
