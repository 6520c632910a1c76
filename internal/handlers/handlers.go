// Package handlers exposes the moderation engine as a JSON admin API.
// Handlers parse, check permissions, call the programmatic surface and
// translate the error taxonomy into HTTP statuses; they hold no business
// rules of their own.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/dispatch"
	"tangled.org/vigil.community/vigil/internal/effects"
	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/notices"
	"tangled.org/vigil.community/vigil/internal/roles"
	"tangled.org/vigil.community/vigil/internal/sanctions"
	"tangled.org/vigil.community/vigil/internal/security"
	"tangled.org/vigil.community/vigil/internal/warnings"
)

// Handler contains all HTTP handler methods and their dependencies.
// Dependencies are injected via the constructor for better testability.
type Handler struct {
	engine *effects.Engine
	ledger *actions.Ledger
	mutes  *sanctions.Registry
	bans   *sanctions.Registry
	hides  *sanctions.Registry
	warns  *warnings.Service
	roles  *roles.Service
	notes  *notices.Service

	security *security.Service
	events   *dispatch.Broadcaster
}

// NewHandler creates a new Handler with all required dependencies.
func NewHandler(
	engine *effects.Engine,
	ledger *actions.Ledger,
	mutes, bans, hides *sanctions.Registry,
	warns *warnings.Service,
	roleSvc *roles.Service,
	notes *notices.Service,
	sec *security.Service,
	events *dispatch.Broadcaster,
) *Handler {
	return &Handler{
		engine:   engine,
		ledger:   ledger,
		mutes:    mutes,
		bans:     bans,
		hides:    hides,
		warns:    warns,
		roles:    roleSvc,
		notes:    notes,
		security: sec,
		events:   events,
	}
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, moderr.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, moderr.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, moderr.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, moderr.ErrInvalidReason):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, moderr.ErrStoreUnavailable):
		http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Msg("Unhandled request error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON parses the request body into dst. Writes a 400 and returns false
// on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// pathID parses the {id} path segment. Writes a 400 and returns false on
// malformed input.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInt64 parses an optional integer query parameter, zero when absent.
func queryInt64(r *http.Request, name string) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return v
}

// requireTier enforces a minimum roster tier on the acting moderator. With no
// roster configured every check passes, matching the disabled security mode.
func (h *Handler) requireTier(w http.ResponseWriter, r *http.Request, moderator int64, tier security.Tier) bool {
	if !h.security.IsEnabled() {
		return true
	}
	if err := h.security.Require(moderator, tier); err != nil {
		log.Warn().
			Int64("moderator", moderator).
			Str("endpoint", r.URL.Path).
			Msg("Denied: insufficient tier")
		writeError(w, err)
		return false
	}
	return true
}

// requireOutranks enforces that the actor sits above the subject on the
// ladder, so moderators cannot sanction their peers or superiors.
func (h *Handler) requireOutranks(w http.ResponseWriter, r *http.Request, actor, subject int64) bool {
	if !h.security.IsEnabled() {
		return true
	}
	if err := h.security.Compare(actor, subject); err != nil {
		log.Warn().
			Int64("moderator", actor).
			Int64("user", subject).
			Str("endpoint", r.URL.Path).
			Msg("Denied: subject not outranked")
		writeError(w, err)
		return false
	}
	return true
}

// autoReview reports whether the moderator's own acts self-approve. Without a
// roster nobody self-approves and every act waits for review.
func (h *Handler) autoReview(moderator int64) bool {
	return h.security.IsEnabled() && h.security.AutoReview(moderator)
}

// HandleHealthz reports process liveness.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleEvents upgrades to a websocket and streams enforcement events.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	h.events.ServeHTTP(w, r)
}
