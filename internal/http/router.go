package httpapi

import (
	"net/http"

	"vigil-backend/internal/metrics"
	"vigil-backend/internal/service"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Deps 路由依赖
type Deps struct {
	Settings  *service.SettingsService
	Devices   *service.DeviceService
	Alerts    *service.AlertService
	Push      *service.PushService
	Dashboard *service.DashboardService
	Family    *service.FamilyService
	Metrics   *metrics.Metrics

	JWTSecret      string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter 注册全部路由；返回的 Handler 已包含 CORS 与访问日志
func NewRouter(d Deps) http.Handler {
	h := &Handler{
		settings:  d.Settings,
		devices:   d.Devices,
		alerts:    d.Alerts,
		push:      d.Push,
		dashboard: d.Dashboard,
		family:    d.Family,
		logger:    d.Logger,
	}

	r := mux.NewRouter()
	route := func(path string, fn http.HandlerFunc, auth bool, methods ...string) {
		var next http.Handler = fn
		if auth {
			next = requireAuth(d.JWTSecret, next)
		}
		r.Handle(path, d.Metrics.WrapHandler(path, next)).Methods(methods...)
	}

	// 公开
	route("/api/health", h.Health, false, http.MethodGet)
	route("/api/push/public-key", h.PublicKey, false, http.MethodGet)

	// 设备令牌
	route("/api/device/events", h.DeviceEvent, false, http.MethodPost)
	route("/api/device/motion", h.DeviceMotion, false, http.MethodPost)

	// 用户令牌（family 范围）
	route("/api/dashboard", h.Dashboard, true, http.MethodGet)
	route("/api/settings", h.GetSettings, true, http.MethodGet)
	route("/api/settings", h.UpdateSettings, true, http.MethodPost)
	route("/api/devices", h.ListDevices, true, http.MethodGet)
	route("/api/devices", h.CreateDevice, true, http.MethodPost)
	route("/api/devices/{id}", h.GetDevice, true, http.MethodGet)
	route("/api/devices/{id}", h.UpdateDevice, true, http.MethodPut)
	route("/api/devices/{id}", h.DeleteDevice, true, http.MethodDelete)
	route("/api/devices/{id}/settings", h.UpdateDeviceSettings, true, http.MethodPost)
	route("/api/devices/{id}/demo-alert", h.DemoAlert, true, http.MethodPost)
	route("/api/alerts/export", h.ExportAlerts, true, http.MethodGet)
	route("/api/alerts", h.ListAlerts, true, http.MethodGet)
	route("/api/alerts", h.CreateAlert, true, http.MethodPost)
	route("/api/alerts/{id}", h.DeleteAlert, true, http.MethodDelete)
	route("/api/push/subscribe", h.Subscribe, true, http.MethodPost)
	route("/api/family/members", h.FamilyMembers, true, http.MethodGet)
	route("/api/family/members", h.JoinFamily, true, http.MethodPost)

	r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Device-Token"}),
	)
	return handlers.LoggingHandler(zap.NewStdLog(d.Logger).Writer(), cors(r))
}
