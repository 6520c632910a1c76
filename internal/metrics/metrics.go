package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vigil_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Sanction lifecycle metrics
var (
	SanctionsGiven = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_sanctions_given_total",
		Help: "Total number of sanctions issued",
	}, []string{"family"})

	SanctionsRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_sanctions_removed_total",
		Help: "Total number of sanctions lifted by a moderator",
	}, []string{"family"})

	SanctionsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_sanctions_expired_total",
		Help: "Total number of sanctions that expired naturally",
	}, []string{"family"})

	SanctionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vigil_sanctions_active",
		Help: "Number of currently active sanctions",
	}, []string{"family"})
)

// Review and escalation metrics
var (
	ReviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_reviews_total",
		Help: "Total number of act reviews",
	}, []string{"outcome"})

	EscalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_escalations_total",
		Help: "Total number of warning-threshold escalations",
	})

	WarningsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigil_warnings_active",
		Help: "Number of warning accumulators with a nonzero count",
	})
)

// Role request metrics
var (
	RoleRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_role_requests_total",
		Help: "Total number of role request submissions",
	})

	RoleRequestsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigil_role_requests_pending",
		Help: "Number of role requests awaiting a decision",
	})

	RoleDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_role_decisions_total",
		Help: "Total number of role request decisions",
	}, []string{"outcome"})
)

// Notification metrics
var (
	NoticesScheduled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigil_notices_scheduled",
		Help: "Number of pending sanction-end notifications",
	})

	NoticesExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_notices_expired_total",
		Help: "Total number of notifications marked expired",
	})
)

// Dispatch metrics
var (
	DispatchEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_dispatch_events_total",
		Help: "Total number of enforcement events dispatched",
	}, []string{"event"})

	EventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigil_event_subscribers",
		Help: "Number of connected event stream subscribers",
	})
)

// NormalizePath reduces high-cardinality path labels by replacing dynamic
// segments with placeholders. This keeps the metric label space bounded.
func NormalizePath(path string) string {
	segments := splitPath(path)
	if len(segments) < 3 || segments[0] != "api" {
		return path
	}

	switch segments[1] {
	case "acts":
		// /api/acts/{id}, /api/acts/{id}/approve, ...
		if len(segments) == 3 {
			return "/api/acts/:id"
		}
		if len(segments) == 4 {
			return "/api/acts/:id/" + segments[3]
		}
	case "roles":
		if segments[2] == "requests" && len(segments) >= 4 {
			if len(segments) == 4 {
				return "/api/roles/requests/:id"
			}
			return "/api/roles/requests/:id/" + segments[4]
		}
	case "users":
		// /api/users/{id}/..., keep the tail verb
		if len(segments) == 3 {
			return "/api/users/:id"
		}
		return "/api/users/:id/" + segments[3]
	case "moderators":
		if len(segments) == 3 {
			return "/api/moderators/:id"
		}
		return "/api/moderators/:id/" + segments[3]
	case "guilds":
		if len(segments) == 3 {
			return "/api/guilds/:id"
		}
		return "/api/guilds/:id/" + segments[3]
	case "notices":
		if len(segments) == 3 {
			return "/api/notices/:id"
		}
		return "/api/notices/:id/" + segments[3]
	}

	return path
}

func splitPath(path string) []string {
	// Skip leading slash
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	// Split on /
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segments = append(segments, path[start:])
	}
	return segments
}
