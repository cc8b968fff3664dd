package httpapi

import (
	"net/http"

	"vigil-backend/internal/service"

	"github.com/gorilla/mux"
)

// GetSettings 家庭生效配置
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	eff, err := h.settings.GetFamilySettings(r.Context(), familyID(r))
	if err != nil {
		h.fail(w, r, err, "Family not found")
		return
	}
	writeJSON(w, http.StatusOK, eff)
}

// UpdateSettings 部分更新家庭配置
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	patch, err := service.ParseSettingsPatch(body)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	eff, err := h.settings.UpdateFamilySettings(r.Context(), familyID(r), patch)
	if err != nil {
		h.fail(w, r, err, "Family not found")
		return
	}
	writeJSON(w, http.StatusOK, eff)
}

// GetDevice 设备及其配置
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.settings.GetDeviceSettingsBundle(r.Context(), familyID(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err, "Device not found")
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// UpdateDeviceSettings 部分更新设备配置覆盖
func (h *Handler) UpdateDeviceSettings(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	patch, err := service.ParseSettingsPatch(body)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	res, err := h.settings.UpdateDeviceSettings(r.Context(), familyID(r), mux.Vars(r)["id"], patch)
	if err != nil {
		h.fail(w, r, err, "Device not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
