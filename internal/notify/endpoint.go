package notify

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"vigil-backend/internal/domain"
)

// ErrUnsafeEndpoint endpoint 指向内网、非 https 或不在白名单内
var ErrUnsafeEndpoint = errors.New("unsafe push endpoint")

// 非公网网段（net.IP 的 Is* 方法未覆盖的部分）
var reservedNets = mustCIDRs(
	"0.0.0.0/8",
	"100.64.0.0/10",
	"192.0.0.0/24",
	"198.18.0.0/15",
)

// EndpointPolicy 推送出站限制
type EndpointPolicy struct {
	// WebhookHosts 无加密密钥的订阅只能投递到这些主机；为空不限制
	WebhookHosts []string
	// AllowPrivateNetwork 本地开发用：允许 http 与内网地址
	AllowPrivateNetwork bool
}

// Validate 校验 endpoint URL 本身（字面 IP、localhost、协议）
func (p EndpointPolicy) Validate(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: malformed url", ErrUnsafeEndpoint)
	}
	if p.AllowPrivateNetwork {
		if u.Scheme != "https" && u.Scheme != "http" {
			return fmt.Errorf("%w: unsupported scheme %q", ErrUnsafeEndpoint, u.Scheme)
		}
		return nil
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: https required", ErrUnsafeEndpoint)
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: %s", ErrUnsafeEndpoint, host)
	}
	if ip := net.ParseIP(host); ip != nil && !isPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrUnsafeEndpoint, host)
	}
	return nil
}

// Check 订阅级校验：URL 合法；webhook 订阅还要命中白名单
func (p EndpointPolicy) Check(sub *domain.PushSubscription) error {
	endpoint := parseDescriptor(sub).Endpoint
	if err := p.Validate(endpoint); err != nil {
		return err
	}
	if HasPushKeys(sub) || len(p.WebhookHosts) == 0 {
		return nil
	}
	u, _ := url.Parse(endpoint)
	host := strings.ToLower(u.Hostname())
	for _, allowed := range p.WebhookHosts {
		if strings.EqualFold(strings.TrimSpace(allowed), host) {
			return nil
		}
	}
	return fmt.Errorf("%w: webhook host %s not allowed", ErrUnsafeEndpoint, host)
}

// HTTPClient 出站客户端：连接前按解析后的地址再校验一次（防 DNS 指向内网）
func (p EndpointPolicy) HTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !p.AllowPrivateNetwork {
		dialer.Control = rejectNonPublic
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: timeout, Transport: transport}
}

func rejectNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsafeEndpoint, address)
	}
	if ip := net.ParseIP(host); ip == nil || !isPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrUnsafeEndpoint, host)
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return false
	}
	for _, n := range reservedNets {
		if n.Contains(ip) {
			return false
		}
	}
	return true
}

func mustCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}
