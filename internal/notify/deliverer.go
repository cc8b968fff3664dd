// Package notify 推送投递与 fan-out
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vigil-backend/internal/domain"
)

var (
	// ErrEndpointGone 推送服务返回 404/410，订阅应删除
	ErrEndpointGone = errors.New("push endpoint gone")
	// ErrNoTransport 没有可用的投递方式
	ErrNoTransport = errors.New("no transport for subscription")
)

// Notification 推送内容（序列化为 JSON 发送）
type Notification struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	URL      string `json:"url"`
	AlertID  int64  `json:"alert_id,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// Deliverer 单个 endpoint 的投递
type Deliverer interface {
	Deliver(ctx context.Context, sub *domain.PushSubscription, payload []byte) error
}

// descriptor 浏览器 PushSubscription.toJSON() 的结构
type descriptor struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func parseDescriptor(sub *domain.PushSubscription) descriptor {
	var d descriptor
	if len(sub.Subscription) > 0 {
		_ = json.Unmarshal(sub.Subscription, &d)
	}
	if d.Endpoint == "" {
		d.Endpoint = sub.Endpoint
	}
	return d
}

// HasPushKeys 描述中带有 Web Push 加密密钥
func HasPushKeys(sub *domain.PushSubscription) bool {
	d := parseDescriptor(sub)
	return d.Keys.P256dh != "" && d.Keys.Auth != ""
}

// RoutingDeliverer 带密钥的走 Web Push，否则走 webhook
// 不满足 Policy 的订阅按失效处理，由调用方清理
type RoutingDeliverer struct {
	Push    Deliverer
	Webhook Deliverer
	Policy  EndpointPolicy
}

func (r *RoutingDeliverer) Deliver(ctx context.Context, sub *domain.PushSubscription, payload []byte) error {
	if err := r.Policy.Check(sub); err != nil {
		return fmt.Errorf("%w: %w", ErrEndpointGone, err)
	}
	if HasPushKeys(sub) {
		if r.Push == nil {
			return ErrNoTransport
		}
		return r.Push.Deliver(ctx, sub, payload)
	}
	if r.Webhook == nil {
		return ErrNoTransport
	}
	return r.Webhook.Deliver(ctx, sub, payload)
}
