// Package dispatch carries enforcement decisions out of the engine: telling
// the platform to act (kick, revoke) and telling watchers what happened.
package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"tangled.org/vigil.community/vigil/internal/metrics"
)

// Event is one enforcement fact pushed to subscribers.
type Event struct {
	Type      string    `json:"type"`
	At        time.Time `json:"at"`
	User      int64     `json:"user"`
	Guild     int64     `json:"guild"`
	Moderator int64     `json:"moderator,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Act       int64     `json:"act,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Event types.
const (
	EventSanctionGiven   = "sanction_given"
	EventSanctionRemoved = "sanction_removed"
	EventSanctionExpired = "sanction_expired"
	EventUserKicked      = "user_kicked"
	EventNoticeDue       = "notice_due"
	EventRoleDecided     = "role_decided"
)

// Enforcer applies decisions on the platform side. Implementations talk to
// the chat platform; the engine only cares that the call either lands or
// errors.
type Enforcer interface {
	// Kick removes the user from the guild.
	Kick(ctx context.Context, user, guild int64, reason string) error

	// Revoke lifts a platform-side restriction matching the persisted kind
	// string (mute_text_give, ban_local_give, ...).
	Revoke(ctx context.Context, user, guild int64, kind string) error

	// GrantRole assigns an approved role and nickname to the user.
	GrantRole(ctx context.Context, user, guild int64, role, nickname string) error
}

// Notifier delivers events to watchers.
type Notifier interface {
	Publish(ev Event)
}

// LogEnforcer is the default Enforcer: it records what would have been done.
// Used when no platform connector is configured.
type LogEnforcer struct{}

func (LogEnforcer) Kick(_ context.Context, user, guild int64, reason string) error {
	log.Info().
		Int64("user", user).
		Int64("guild", guild).
		Str("reason", reason).
		Msg("dispatch: kick")
	return nil
}

func (LogEnforcer) Revoke(_ context.Context, user, guild int64, kind string) error {
	log.Info().
		Int64("user", user).
		Int64("guild", guild).
		Str("kind", kind).
		Msg("dispatch: revoke")
	return nil
}

func (LogEnforcer) GrantRole(_ context.Context, user, guild int64, role, nickname string) error {
	log.Info().
		Int64("user", user).
		Int64("guild", guild).
		Str("role", role).
		Str("nickname", nickname).
		Msg("dispatch: grant role")
	return nil
}

// LogNotifier is the default Notifier: it logs events and counts them.
type LogNotifier struct{}

func (LogNotifier) Publish(ev Event) {
	metrics.DispatchEventsTotal.WithLabelValues(ev.Type).Inc()
	log.Info().
		Str("event", ev.Type).
		Int64("user", ev.User).
		Int64("guild", ev.Guild).
		Msg("dispatch: event")
}
