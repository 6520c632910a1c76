package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"tangled.org/vigil.community/vigil/internal/metrics"
	"tangled.org/vigil.community/vigil/internal/security"
)

// statsResponse is the operator dashboard snapshot.
type statsResponse struct {
	ActiveSanctions     map[string]int `json:"active_sanctions"`
	ActiveWarnings      int            `json:"active_warnings"`
	PendingRoleRequests int            `json:"pending_role_requests"`
	ScheduledNotices    int            `json:"scheduled_notices"`
	EventSubscribers    int            `json:"event_subscribers"`
}

// HandleStats handles GET /api/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := statsResponse{
		ActiveSanctions:  make(map[string]int),
		ScheduledNotices: h.notes.PendingCount(),
		EventSubscribers: h.events.Subscribers(),
	}

	// Sanction counts come from the Prometheus gauges the registries maintain.
	for _, family := range []string{"mute", "ban", "hide"} {
		stats.ActiveSanctions[family] = int(getGaugeValue(metrics.SanctionsActive.WithLabelValues(family)))
	}

	if n, err := h.warns.ActiveAccumulators(r.Context()); err == nil {
		stats.ActiveWarnings = n
	} else {
		log.Error().Err(err).Msg("Failed to count active warning accumulators")
	}
	if n, err := h.roles.PendingCount(r.Context()); err == nil {
		stats.PendingRoleRequests = n
	} else {
		log.Error().Err(err).Msg("Failed to count pending role requests")
	}

	writeJSON(w, http.StatusOK, stats)
}

// getGaugeValue reads the current value of a prometheus.Gauge.
func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil {
		return m.GetGauge().GetValue()
	}
	return 0
}

// HandleListRoster handles GET /api/roster
func (h *Handler) HandleListRoster(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.security.ListModerators())
}

// rosterReloadRequest is the request body for reloading the roster.
type rosterReloadRequest struct {
	Moderator int64 `json:"moderator"`
}

// HandleReloadRoster handles POST /api/roster/reload
func (h *Handler) HandleReloadRoster(w http.ResponseWriter, r *http.Request) {
	var req rosterReloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Moderator <= 0 {
		http.Error(w, "moderator is required", http.StatusBadRequest)
		return
	}
	if !h.requireTier(w, r, req.Moderator, security.TierOverseer) {
		return
	}

	if err := h.security.Reload(); err != nil {
		log.Error().Err(err).Msg("Failed to reload roster")
		http.Error(w, "Failed to reload roster", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
