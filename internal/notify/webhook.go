package notify

import (
	"context"
	"fmt"
	"time"

	"vigil-backend/internal/domain"

	"github.com/go-resty/resty/v2"
)

// WebhookDeliverer 没有加密密钥的订阅：直接 POST JSON 到 endpoint
type WebhookDeliverer struct {
	client *resty.Client
}

// NewWebhookDeliverer 出站连接受 policy 限制
func NewWebhookDeliverer(timeout time.Duration, policy EndpointPolicy) *WebhookDeliverer {
	client := resty.NewWithClient(policy.HTTPClient(timeout)).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Content-Type", "application/json")

	return &WebhookDeliverer{client: client}
}

func (d *WebhookDeliverer) Deliver(ctx context.Context, sub *domain.PushSubscription, payload []byte) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(parseDescriptor(sub).Endpoint)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	return statusError(resp.StatusCode())
}
