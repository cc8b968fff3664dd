package httpapi

import (
	"net/http"

	"vigil-backend/internal/service"
)

// DeviceEvent 设备事件上报（设备令牌鉴权）
func (h *Handler) DeviceEvent(w http.ResponseWriter, r *http.Request) {
	tok := deviceToken(r)
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "Missing device token")
		return
	}
	var ev service.DeviceEvent
	if err := readBodyJSON(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := h.alerts.IngestDeviceEvent(r.Context(), tok, ev)
	if err != nil {
		h.fail(w, r, err, "Device not found")
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// DeviceMotion 运动事件上报（设备令牌鉴权）
func (h *Handler) DeviceMotion(w http.ResponseWriter, r *http.Request) {
	tok := deviceToken(r)
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "Missing device token")
		return
	}
	var ev service.MotionEvent
	if err := readBodyJSON(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := h.devices.IngestMotion(r.Context(), tok, ev)
	if err != nil {
		h.fail(w, r, err, "Device not found")
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}
