package httpapi

import (
	"net/http"

	"vigil-backend/internal/service"

	"github.com/gorilla/mux"
)

// ListDevices 家庭设备列表
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.ListDevices(r.Context(), familyID(r))
	if err != nil {
		h.fail(w, r, err, "Family not found")
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// CreateDevice 创建设备，响应中包含 device_token
func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req service.CreateDeviceRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	dev, err := h.devices.CreateDevice(r.Context(), familyID(r), req)
	if err != nil {
		h.fail(w, r, err, "Family not found")
		return
	}
	writeJSON(w, http.StatusCreated, dev)
}

// UpdateDevice 更新名称/房间
func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateDeviceRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	dev, err := h.devices.UpdateDevice(r.Context(), familyID(r), mux.Vars(r)["id"], req)
	if err != nil {
		h.fail(w, r, err, "Device not found")
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// DeleteDevice 删除设备
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.devices.DeleteDevice(r.Context(), familyID(r), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err, "Device not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DemoAlert 以设备名义发送演示告警
func (h *Handler) DemoAlert(w http.ResponseWriter, r *http.Request) {
	res, err := h.alerts.CreateDemoAlert(r.Context(), familyID(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err, "Device not found")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
