package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"vigil-backend/internal/domain"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// WebPushConfig VAPID 配置
type WebPushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
}

// WebPushDeliverer VAPID Web Push
type WebPushDeliverer struct {
	cfg        WebPushConfig
	httpClient webpush.HTTPClient
}

// NewWebPushDeliverer httpClient 为 nil 时使用 webpush 默认客户端
func NewWebPushDeliverer(cfg WebPushConfig, httpClient webpush.HTTPClient) *WebPushDeliverer {
	return &WebPushDeliverer{cfg: cfg, httpClient: httpClient}
}

func (d *WebPushDeliverer) Deliver(ctx context.Context, sub *domain.PushSubscription, payload []byte) error {
	desc := parseDescriptor(sub)
	s := &webpush.Subscription{
		Endpoint: desc.Endpoint,
		Keys: webpush.Keys{
			P256dh: desc.Keys.P256dh,
			Auth:   desc.Keys.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, s, &webpush.Options{
		HTTPClient:      d.httpClient,
		Subscriber:      d.cfg.Subscriber,
		VAPIDPublicKey:  d.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: d.cfg.VAPIDPrivateKey,
		TTL:             d.cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("web push send failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return statusError(resp.StatusCode)
}

// statusError 404/410 -> ErrEndpointGone，其它 >= 400 视为失败
func statusError(code int) error {
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return ErrEndpointGone
	case code >= 400:
		return fmt.Errorf("push service responded %d", code)
	}
	return nil
}
