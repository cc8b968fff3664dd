package httpapi

import (
	"net/http"
	"strconv"

	"vigil-backend/internal/service"

	"github.com/gorilla/mux"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ListAlerts 最近告警，?limit= 可选
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 0)
	alerts, err := h.alerts.ListAlerts(r.Context(), familyID(r), limit)
	if err != nil {
		h.fail(w, r, err, "Family not found")
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// CreateAlert 手动创建告警并推送
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req service.CreateAlertRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := h.alerts.CreateAlert(r.Context(), familyID(r), req)
	if err != nil {
		h.fail(w, r, err, "Family not found")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// DeleteAlert 删除告警
func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	if err := h.alerts.DeleteAlert(r.Context(), familyID(r), id); err != nil {
		h.fail(w, r, err, "Alert not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportAlerts 导出告警 xlsx
func (h *Handler) ExportAlerts(w http.ResponseWriter, r *http.Request) {
	data, err := h.alerts.ExportAlerts(r.Context(), familyID(r))
	if err != nil {
		h.fail(w, r, err, "Family not found")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="alerts.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
