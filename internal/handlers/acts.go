package handlers

import (
	"net/http"
	"time"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/sanctions"
	"tangled.org/vigil.community/vigil/internal/security"
)

// HandleGetAct handles GET /api/acts/{id}
func (h *Handler) HandleGetAct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	act, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// reviewRequest is the request body for resolving an act.
type reviewRequest struct {
	Reviewer int64 `json:"reviewer"`
}

// HandleApproveAct handles POST /api/acts/{id}/approve
func (h *Handler) HandleApproveAct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Reviewer <= 0 {
		http.Error(w, "reviewer is required", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Reviewer, security.TierHeadModerator) {
		return
	}

	if err := h.engine.Approve(r.Context(), id, req.Reviewer); err != nil {
		writeError(w, err)
		return
	}
	act, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// HandleDeactivateAct handles POST /api/acts/{id}/deactivate
func (h *Handler) HandleDeactivateAct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Reviewer <= 0 {
		http.Error(w, "reviewer is required", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Reviewer, security.TierHeadModerator) {
		return
	}

	if err := h.engine.Deactivate(r.Context(), id, req.Reviewer); err != nil {
		writeError(w, err)
		return
	}
	act, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// proofRequest is the request body for attaching evidence to an act.
type proofRequest struct {
	Link string `json:"link"`
}

// HandleAttachProof handles POST /api/acts/{id}/proof
func (h *Handler) HandleAttachProof(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req proofRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Link == "" {
		http.Error(w, "link is required", http.StatusBadRequest)
		return
	}

	if err := h.ledger.AttachProof(r.Context(), id, req.Link); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUserActs handles GET /api/users/{id}/acts
func (h *Handler) HandleUserActs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	q := actions.UserQuery{
		Guild:        queryInt64(r, "guild"),
		CountingOnly: r.URL.Query().Get("counting") == "true",
	}
	if after := r.URL.Query().Get("after"); after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			http.Error(w, "after must be RFC 3339", http.StatusBadRequest)
			return
		}
		q.After = t
	}

	acts, err := h.ledger.ByUser(r.Context(), id, q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acts)
}

// HandleUserSanctions handles GET /api/users/{id}/sanctions
func (h *Handler) HandleUserSanctions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var all []sanctions.Sanction
	for _, reg := range []*sanctions.Registry{h.mutes, h.bans, h.hides} {
		rows, err := reg.ByUser(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		all = append(all, rows...)
	}
	writeJSON(w, http.StatusOK, all)
}

// HandleUserWarnings handles GET /api/users/{id}/warnings
func (h *Handler) HandleUserWarnings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	guild := queryInt64(r, "guild")
	if guild <= 0 {
		http.Error(w, "guild is required", http.StatusBadRequest)
		return
	}

	active, err := h.warns.Active(r.Context(), id, guild)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"active": active})
}

// HandleModeratorActs handles GET /api/moderators/{id}/acts
func (h *Handler) HandleModeratorActs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	q := actions.ModeratorQuery{Guild: queryInt64(r, "guild")}
	from, to, ok := queryRange(w, r)
	if !ok {
		return
	}
	q.From, q.To = from, to

	acts, err := h.ledger.ByModerator(r.Context(), id, q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acts)
}

// HandleGuildSimilar handles GET /api/guilds/{id}/similar
func (h *Handler) HandleGuildSimilar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	pairs, err := h.ledger.Similar(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pairs)
}

// queryRange parses the optional from/to RFC 3339 query parameters.
func queryRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	parse := func(name string) (time.Time, bool) {
		v := r.URL.Query().Get(name)
		if v == "" {
			return time.Time{}, true
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, name+" must be RFC 3339", http.StatusBadRequest)
			return time.Time{}, false
		}
		return t, true
	}

	if from, ok = parse("from"); !ok {
		return
	}
	to, ok = parse("to")
	return
}
