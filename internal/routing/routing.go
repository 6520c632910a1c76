package routing

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tangled.org/vigil.community/vigil/internal/handlers"
	"tangled.org/vigil.community/vigil/internal/middleware"
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Handlers *handlers.Handler
	Logger   zerolog.Logger
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	// Sanction lifecycle
	mux.HandleFunc("POST /api/mutes", h.HandleGiveMute)
	mux.HandleFunc("POST /api/mutes/remove", h.HandleRemoveMute)
	mux.HandleFunc("POST /api/bans", h.HandleGiveBan)
	mux.HandleFunc("POST /api/bans/remove", h.HandleRemoveBan)
	mux.HandleFunc("POST /api/hides", h.HandleGiveHide)
	mux.HandleFunc("POST /api/hides/remove", h.HandleRemoveHide)
	mux.HandleFunc("POST /api/warnings", h.HandleGiveWarn)
	mux.HandleFunc("POST /api/warnings/remove", h.HandleRemoveWarn)

	// Act ledger and review
	mux.HandleFunc("GET /api/acts/{id}", h.HandleGetAct)
	mux.HandleFunc("POST /api/acts/{id}/approve", h.HandleApproveAct)
	mux.HandleFunc("POST /api/acts/{id}/deactivate", h.HandleDeactivateAct)
	mux.HandleFunc("POST /api/acts/{id}/proof", h.HandleAttachProof)

	// Subject history
	mux.HandleFunc("GET /api/users/{id}/acts", h.HandleUserActs)
	mux.HandleFunc("GET /api/users/{id}/sanctions", h.HandleUserSanctions)
	mux.HandleFunc("GET /api/users/{id}/warnings", h.HandleUserWarnings)
	mux.HandleFunc("GET /api/users/{id}/roles", h.HandleUserRoleHistory)
	mux.HandleFunc("GET /api/users/{id}/nicknames", h.HandleUserNicknames)

	// Moderator oversight
	mux.HandleFunc("GET /api/moderators/{id}/acts", h.HandleModeratorActs)
	mux.HandleFunc("GET /api/moderators/{id}/work", h.HandleModeratorWork)
	mux.HandleFunc("GET /api/guilds/{id}/similar", h.HandleGuildSimilar)
	mux.HandleFunc("GET /api/guilds/{id}/export", h.HandleGuildExport)

	// Role requests
	mux.HandleFunc("POST /api/roles/requests", h.HandleSubmitRoleRequest)
	mux.HandleFunc("GET /api/roles/requests/{id}", h.HandleGetRoleRequest)
	mux.HandleFunc("POST /api/roles/requests/{id}/claim", h.HandleClaimRoleRequest)
	mux.HandleFunc("POST /api/roles/requests/{id}/resolve", h.HandleResolveRoleRequest)
	mux.HandleFunc("POST /api/roles/requests/{id}/revisit", h.HandleRevisitRoleRequest)
	mux.HandleFunc("POST /api/roles/removals", h.HandleRemoveUserRoles)

	// Notices
	mux.HandleFunc("GET /api/notices/{id}", h.HandleGetNotice)
	mux.HandleFunc("POST /api/notices/{id}/ack", h.HandleAckNotice)

	// Operations
	mux.HandleFunc("GET /api/stats", h.HandleStats)
	mux.HandleFunc("GET /api/roster", h.HandleListRoster)
	mux.HandleFunc("POST /api/roster/reload", h.HandleReloadRoster)
	mux.HandleFunc("GET /api/events", h.HandleEvents)
	mux.HandleFunc("GET /healthz", h.HandleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Apply middleware in order (outermost first, innermost last)
	var handler http.Handler = mux

	// 1. Limit request body size (innermost - runs first on request)
	handler = middleware.LimitBodyMiddleware(handler)

	// 2. Apply rate limiting
	rateLimitConfig := middleware.NewDefaultRateLimitConfig()
	handler = middleware.RateLimitMiddleware(rateLimitConfig)(handler)

	// 3. Apply security headers
	handler = middleware.SecurityHeadersMiddleware(handler)

	// 4. Apply logging middleware (outermost - wraps everything)
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	return handler
}
