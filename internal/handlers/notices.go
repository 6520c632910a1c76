package handlers

import (
	"net/http"

	"tangled.org/vigil.community/vigil/internal/security"
)

// HandleGetNotice handles GET /api/notices/{id}
func (h *Handler) HandleGetNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := h.notes.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// ackRequest is the request body for acknowledging a delivered notice.
type ackRequest struct {
	Moderator int64 `json:"moderator"`
}

// HandleAckNotice handles POST /api/notices/{id}/ack
func (h *Handler) HandleAckNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Moderator <= 0 {
		http.Error(w, "moderator is required", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Moderator, security.TierModerator) {
		return
	}

	if err := h.notes.Notify(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
