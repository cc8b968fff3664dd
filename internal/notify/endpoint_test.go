package notify

import (
	"net"
	"testing"

	"vigil-backend/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestEndpointPolicy_Validate(t *testing.T) {
	strict := EndpointPolicy{}

	for _, ok := range []string{
		"https://fcm.googleapis.com/fcm/send/abc",
		"https://push.example/a",
		"https://8.8.8.8/hook",
	} {
		assert.NoError(t, strict.Validate(ok), ok)
	}

	for _, bad := range []string{
		"",
		"not a url",
		"http://push.example/a",
		"ftp://push.example/a",
		"https://localhost:8080/hook",
		"https://api.localhost/hook",
		"https://127.0.0.1/hook",
		"https://[::1]/hook",
		"https://10.0.0.5/hook",
		"https://192.168.1.20/hook",
		"https://169.254.169.254/latest/meta-data",
		"https://100.64.0.1/hook",
		"https://0.0.0.0/hook",
	} {
		assert.ErrorIs(t, strict.Validate(bad), ErrUnsafeEndpoint, bad)
	}

	dev := EndpointPolicy{AllowPrivateNetwork: true}
	assert.NoError(t, dev.Validate("http://127.0.0.1:9000/hook"))
	assert.ErrorIs(t, dev.Validate("file:///etc/passwd"), ErrUnsafeEndpoint)
}

func TestEndpointPolicy_CheckWebhookAllowlist(t *testing.T) {
	p := EndpointPolicy{WebhookHosts: []string{"hooks.example", " Alerts.Example.org "}}

	assert.NoError(t, p.Check(&domain.PushSubscription{Endpoint: "https://hooks.example/family/1"}))
	assert.NoError(t, p.Check(&domain.PushSubscription{Endpoint: "https://alerts.example.org/x"}))
	assert.ErrorIs(t, p.Check(&domain.PushSubscription{Endpoint: "https://evil.example/x"}), ErrUnsafeEndpoint)

	// 带密钥的浏览器订阅投递到推送服务，不受 webhook 白名单限制
	withKeys := &domain.PushSubscription{
		Endpoint:     "https://fcm.googleapis.com/fcm/send/abc",
		Subscription: []byte(`{"endpoint":"https://fcm.googleapis.com/fcm/send/abc","keys":{"p256dh":"k","auth":"a"}}`),
	}
	assert.NoError(t, p.Check(withKeys))
}

func TestRejectNonPublic(t *testing.T) {
	assert.ErrorIs(t, rejectNonPublic("tcp", "127.0.0.1:443", nil), ErrUnsafeEndpoint)
	assert.ErrorIs(t, rejectNonPublic("tcp", "[fe80::1]:443", nil), ErrUnsafeEndpoint)
	assert.ErrorIs(t, rejectNonPublic("tcp", "10.1.2.3:80", nil), ErrUnsafeEndpoint)
	assert.NoError(t, rejectNonPublic("tcp", "93.184.216.34:443", nil))
	assert.True(t, isPublicIP(net.ParseIP("2606:4700:4700::1111")))
}
