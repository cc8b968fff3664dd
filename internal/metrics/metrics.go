// Package metrics Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 所有方法在 nil 接收者上都是空操作
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	alertsCreated     *prometheus.CounterVec
	deliveries        *prometheus.CounterVec
	deviceEvents      *prometheus.CounterVec
	dashboardDuration prometheus.Histogram
}

// New 创建并注册指标；reg 为 nil 时使用独立的 Registry
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vigil_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_alerts_created_total",
			Help: "Alerts created by source (api, demo, device) and severity.",
		}, []string{"source", "severity"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_push_deliveries_total",
			Help: "Push delivery attempts by result (delivered, failed, gone).",
		}, []string{"result"}),
		deviceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_device_events_total",
			Help: "Ingested device events by type.",
		}, []string{"type"}),
		dashboardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_dashboard_build_seconds",
			Help:    "Time spent building a family dashboard.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.alertsCreated,
		m.deliveries,
		m.deviceEvents,
		m.dashboardDuration,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler 记录请求数与耗时
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) AlertCreated(source, severity string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(source, severity).Inc()
}

func (m *Metrics) Delivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) DeviceEvent(eventType string) {
	if m == nil {
		return
	}
	m.deviceEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) DashboardBuilt(d time.Duration) {
	if m == nil {
		return
	}
	m.dashboardDuration.Observe(d.Seconds())
}
