package handlers

import (
	"net/http"

	"tangled.org/vigil.community/vigil/internal/sanctions"
	"tangled.org/vigil.community/vigil/internal/security"
	"tangled.org/vigil.community/vigil/internal/warnings"
)

// giveSanctionRequest is the request body for issuing a mute, ban or hide.
type giveSanctionRequest struct {
	User      int64  `json:"user"`
	Guild     int64  `json:"guild"`
	Moderator int64  `json:"moderator"`
	Subtype   string `json:"subtype,omitempty"`
	Duration  int64  `json:"duration,omitempty"`
	Reason    string `json:"reason,omitempty"`
	ProveLink string `json:"prove_link,omitempty"`

	// Message is the platform message the sanction reacts to, carried on the
	// scheduled end-of-sanction notice.
	Message int64 `json:"message,omitempty"`
}

// removeSanctionRequest is the request body for lifting a sanction.
type removeSanctionRequest struct {
	User      int64  `json:"user"`
	Guild     int64  `json:"guild"`
	Moderator int64  `json:"moderator"`
	Subtype   string `json:"subtype,omitempty"`
}

func (req *giveSanctionRequest) valid() bool {
	return req.User > 0 && req.Guild > 0 && req.Moderator > 0
}

func (req *removeSanctionRequest) valid() bool {
	return req.User > 0 && req.Guild > 0 && req.Moderator > 0
}

// HandleGiveMute handles POST /api/mutes
func (h *Handler) HandleGiveMute(w http.ResponseWriter, r *http.Request) {
	var req giveSanctionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		http.Error(w, "user, guild and moderator are required", http.StatusBadRequest)
		return
	}
	switch req.Subtype {
	case sanctions.MuteText, sanctions.MuteVoice, sanctions.MuteFull:
	default:
		http.Error(w, "subtype must be text, voice or full", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Moderator, security.TierModerator) {
		return
	}
	if !h.requireOutranks(w, r, req.Moderator, req.User) {
		return
	}

	act, err := h.engine.GiveMute(r.Context(), sanctions.GiveParams{
		User:       req.User,
		Guild:      req.Guild,
		Moderator:  req.Moderator,
		Subtype:    req.Subtype,
		Duration:   req.Duration,
		Reason:     req.Reason,
		ProveLink:  req.ProveLink,
		Counting:   true,
		AutoReview: h.autoReview(req.Moderator),
	}, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, act)
}

// HandleRemoveMute handles POST /api/mutes/remove
func (h *Handler) HandleRemoveMute(w http.ResponseWriter, r *http.Request) {
	var req removeSanctionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		http.Error(w, "user, guild and moderator are required", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Moderator, security.TierModerator) {
		return
	}

	act, err := h.engine.RemoveMute(r.Context(), req.User, req.Guild, req.Moderator, req.Subtype, h.autoReview(req.Moderator))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// HandleGiveBan handles POST /api/bans
func (h *Handler) HandleGiveBan(w http.ResponseWriter, r *http.Request) {
	var req giveSanctionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		http.Error(w, "user, guild and moderator are required", http.StatusBadRequest)
		return
	}
	switch req.Subtype {
	case sanctions.ScopeLocal, sanctions.ScopeGlobal:
	default:
		http.Error(w, "subtype must be local or global", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Moderator, security.TierSeniorModerator) {
		return
	}
	if !h.requireOutranks(w, r, req.Moderator, req.User) {
		return
	}

	act, err := h.engine.GiveBan(r.Context(), sanctions.GiveParams{
		User:       req.User,
		Guild:      req.Guild,
		Moderator:  req.Moderator,
		Subtype:    req.Subtype,
		Duration:   req.Duration,
		Reason:     req.Reason,
		ProveLink:  req.ProveLink,
		Counting:   true,
		AutoReview: h.autoReview(req.Moderator),
	}, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, act)
}

// HandleRemoveBan handles POST /api/bans/remove
func (h *Handler) HandleRemoveBan(w http.ResponseWriter, r *http.Request) {
	var req removeSanctionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		http.Error(w, "user, guild and moderator are required", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Moderator, security.TierSeniorModerator) {
		return
	}

	act, err := h.engine.RemoveBan(r.Context(), req.User, req.Guild, req.Moderator, req.Subtype, h.autoReview(req.Moderator))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// HandleGiveHide handles POST /api/hides
func (h *Handler) HandleGiveHide(w http.ResponseWriter, r *http.Request) {
	var req giveSanctionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		http.Error(w, "user, guild and moderator are required", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Moderator, security.TierModerator) {
		return
	}
	if !h.requireOutranks(w, r, req.Moderator, req.User) {
		return
	}

	act, err := h.engine.GiveHide(r.Context(), sanctions.GiveParams{
		User:       req.User,
		Guild:      req.Guild,
		Moderator:  req.Moderator,
		Reason:     req.Reason,
		ProveLink:  req.ProveLink,
		Counting:   true,
		AutoReview: h.autoReview(req.Moderator),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, act)
}

// HandleRemoveHide handles POST /api/hides/remove
func (h *Handler) HandleRemoveHide(w http.ResponseWriter, r *http.Request) {
	var req removeSanctionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		http.Error(w, "user, guild and moderator are required", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Moderator, security.TierModerator) {
		return
	}

	act, err := h.engine.RemoveHide(r.Context(), req.User, req.Guild, req.Moderator, h.autoReview(req.Moderator))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// warnRequest is the request body for issuing or lifting a warning.
type warnRequest struct {
	User      int64  `json:"user"`
	Guild     int64  `json:"guild"`
	Moderator int64  `json:"moderator"`
	Reason    string `json:"reason,omitempty"`
	ProveLink string `json:"prove_link,omitempty"`
}

// HandleGiveWarn handles POST /api/warnings
func (h *Handler) HandleGiveWarn(w http.ResponseWriter, r *http.Request) {
	var req warnRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.User <= 0 || req.Guild <= 0 || req.Moderator <= 0 {
		http.Error(w, "user, guild and moderator are required", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Moderator, security.TierModerator) {
		return
	}
	if !h.requireOutranks(w, r, req.Moderator, req.User) {
		return
	}

	act, err := h.engine.GiveWarn(r.Context(), warnings.GiveParams{
		User:       req.User,
		Guild:      req.Guild,
		Moderator:  req.Moderator,
		Reason:     req.Reason,
		ProveLink:  req.ProveLink,
		AutoReview: h.autoReview(req.Moderator),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, act)
}

// HandleRemoveWarn handles POST /api/warnings/remove
func (h *Handler) HandleRemoveWarn(w http.ResponseWriter, r *http.Request) {
	var req warnRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.User <= 0 || req.Guild <= 0 || req.Moderator <= 0 {
		http.Error(w, "user, guild and moderator are required", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Moderator, security.TierModerator) {
		return
	}

	act, err := h.engine.RemoveWarn(r.Context(), req.User, req.Guild, req.Moderator, req.Reason, h.autoReview(req.Moderator))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}
