package httpapi

import (
	"net/http"
)

// Subscribe 保存浏览器推送订阅（PushSubscription.toJSON() 原样提交）
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sub, err := h.push.Subscribe(r.Context(), familyID(r), body)
	if err != nil {
		h.fail(w, r, err, "Family not found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"status":   "subscribed",
		"endpoint": sub.Endpoint,
	})
}

// PublicKey VAPID 公钥
func (h *Handler) PublicKey(w http.ResponseWriter, _ *http.Request) {
	key := h.push.PublicKey()
	if key == "" {
		writeError(w, http.StatusNotFound, "Push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": key})
}
