package httpapi

import (
	"net/http"
)

// FamilyMembers 当前家庭成员
func (h *Handler) FamilyMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.family.ListMembers(r.Context(), familyID(r))
	if err != nil {
		h.fail(w, r, err, "Family not found")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// JoinFamily 令牌持有人（sub 为 email）登记为当前家庭成员
func (h *Handler) JoinFamily(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var email string
	if c := claimsFrom(r.Context()); c != nil {
		email = c.Subject
	}
	user, err := h.family.JoinFamily(r.Context(), familyID(r), email, req.Name)
	if err != nil {
		h.fail(w, r, err, "Family not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
