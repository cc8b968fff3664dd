package httpapi

import (
	"errors"
	"net/http"

	"vigil-backend/internal/service"

	"go.uber.org/zap"
)

// Handler 所有 /api 路由的处理器
type Handler struct {
	settings  *service.SettingsService
	devices   *service.DeviceService
	alerts    *service.AlertService
	push      *service.PushService
	dashboard *service.DashboardService
	family    *service.FamilyService
	logger    *zap.Logger
}

// fail 业务错误映射：ErrNotFound -> 404，ValidationError -> 400，其它 -> 500
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	var ve *service.ValidationError
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMsg)
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Reason)
	default:
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// Health 存活检查
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Dashboard 家庭看板
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard.BuildDashboard(r.Context(), familyID(r))
	if err != nil {
		h.fail(w, r, err, "Family not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}
