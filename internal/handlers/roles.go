package handlers

import (
	"net/http"
	"time"

	"tangled.org/vigil.community/vigil/internal/roles"
	"tangled.org/vigil.community/vigil/internal/security"
)

// submitRoleRequest is the request body for filing a role request.
type submitRoleRequest struct {
	User     int64  `json:"user"`
	Guild    int64  `json:"guild"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
	Rank     int    `json:"rank"`

	// Message is the platform status message shown to the applicant.
	Message int64 `json:"message,omitempty"`
}

// HandleSubmitRoleRequest handles POST /api/roles/requests
func (h *Handler) HandleSubmitRoleRequest(w http.ResponseWriter, r *http.Request) {
	var req submitRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.User <= 0 || req.Guild <= 0 {
		http.Error(w, "user and guild are required", http.StatusBadRequest)
		return
	}
	if req.Nickname == "" || req.Role == "" {
		http.Error(w, "nickname and role are required", http.StatusBadRequest)
		return
	}

	request, err := h.roles.Submit(r.Context(), roles.SubmitParams{
		User:     req.User,
		Guild:    req.Guild,
		Nickname: req.Nickname,
		Role:     req.Role,
		Rank:     req.Rank,
		Message:  req.Message,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

// HandleGetRoleRequest handles GET /api/roles/requests/{id}
func (h *Handler) HandleGetRoleRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	request, err := h.roles.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

// claimRequest is the request body for claiming a role request.
type claimRequest struct {
	Moderator int64 `json:"moderator"`
}

// HandleClaimRoleRequest handles POST /api/roles/requests/{id}/claim
func (h *Handler) HandleClaimRoleRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req claimRequest
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

	request, err := h.roles.Claim(r.Context(), id, req.Moderator)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

// resolveRequest is the request body for deciding a claimed role request.
type resolveRequest struct {
	Moderator int64  `json:"moderator"`
	Approve   bool   `json:"approve"`
	Reason    string `json:"reason,omitempty"`
}

// HandleResolveRoleRequest handles POST /api/roles/requests/{id}/resolve
func (h *Handler) HandleResolveRoleRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Moderator <= 0 {
		http.Error(w, "moderator is required", http.StatusBadRequest)
		return
	}
	if !req.Approve && req.Reason == "" {
		http.Error(w, "reason is required for a rejection", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Moderator, security.TierModerator) {
		return
	}

	request, err := h.roles.Resolve(r.Context(), id, req.Moderator, req.Approve, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

// revisitRequest is the request body for second-line review of a decision.
type revisitRequest struct {
	Reviewer int64  `json:"reviewer"`
	Approve  bool   `json:"approve"`
	Reason   string `json:"reason,omitempty"`
	Partial  bool   `json:"partial,omitempty"`
}

// HandleRevisitRoleRequest handles POST /api/roles/requests/{id}/revisit
func (h *Handler) HandleRevisitRoleRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req revisitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Reviewer <= 0 {
		http.Error(w, "reviewer is required", http.StatusBadRequest)
		return
	}
	if !req.Approve && req.Reason == "" {
		http.Error(w, "reason is required to overturn", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Reviewer, security.TierHeadModerator) {
		return
	}

	request, err := h.roles.Revisit(r.Context(), id, req.Reviewer, req.Approve, req.Reason, req.Partial)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

// removalRequest is the request body for a bulk role strip.
type removalRequest struct {
	User      int64    `json:"user"`
	Guild     int64    `json:"guild"`
	Moderator int64    `json:"moderator"`
	Roles     []string `json:"roles"`
}

// HandleRemoveUserRoles handles POST /api/roles/removals
func (h *Handler) HandleRemoveUserRoles(w http.ResponseWriter, r *http.Request) {
	var req removalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.User <= 0 || req.Guild <= 0 || req.Moderator <= 0 {
		http.Error(w, "user, guild and moderator are required", http.StatusBadRequest)
		return
	}
	if len(req.Roles) == 0 {
		http.Error(w, "roles are required", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Moderator, security.TierModerator) {
		return
	}

	removal, err := h.roles.RemoveRoles(r.Context(), req.User, req.Guild, req.Moderator, req.Roles)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, removal)
}

// HandleUserRoleHistory handles GET /api/users/{id}/roles
func (h *Handler) HandleUserRoleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	guild := queryInt64(r, "guild")
	if guild <= 0 {
		http.Error(w, "guild is required", http.StatusBadRequest)
		return
	}

	reqs, err := h.roles.RoleHistory(r.Context(), id, guild)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// HandleUserNicknames handles GET /api/users/{id}/nicknames
func (h *Handler) HandleUserNicknames(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	guild := queryInt64(r, "guild")
	if guild <= 0 {
		http.Error(w, "guild is required", http.StatusBadRequest)
		return
	}

	names, err := h.roles.NicknameHistory(r.Context(), id, guild)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// moderatorWorkResponse bundles a moderator's counted decisions and removals.
type moderatorWorkResponse struct {
	Requests []roles.Request `json:"requests"`
	Removals []roles.Removal `json:"removals"`
}

// HandleModeratorWork handles GET /api/moderators/{id}/work
func (h *Handler) HandleModeratorWork(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	guild := queryInt64(r, "guild")
	if guild <= 0 {
		http.Error(w, "guild is required", http.StatusBadRequest)
		return
	}
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}

	reqs, removals, err := h.roles.ModeratorWork(r.Context(), guild, id, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moderatorWorkResponse{Requests: reqs, Removals: removals})
}
