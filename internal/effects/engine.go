// Package effects ties the moderation engine together: it owns the approval
// side effects, the expiration callbacks and the escalation policy, and it is
// the surface handlers call to issue and lift sanctions.
package effects

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/dispatch"
	"tangled.org/vigil.community/vigil/internal/metrics"
	"tangled.org/vigil.community/vigil/internal/notices"
	"tangled.org/vigil.community/vigil/internal/sanctions"
	"tangled.org/vigil.community/vigil/internal/warnings"
)

// EscalationBanSeconds is the local ban length placed when a user's warning
// load reaches the threshold.
const EscalationBanSeconds = 10 * 24 * 60 * 60

// EscalationReason is recorded on the escalation ban.
const EscalationReason = "3 warnings"

// Engine orchestrates the sanction families against the shared ledger.
type Engine struct {
	ledger *actions.Ledger
	mutes  *sanctions.Registry
	bans   *sanctions.Registry
	hides  *sanctions.Registry
	warns  *warnings.Service
	notes  *notices.Service

	enforcer dispatch.Enforcer
	notifier dispatch.Notifier
}

// NewEngine wires the engine: approval side effects onto the ledger and
// expiration callbacks onto the registries and the notice scheduler. Call
// before loading any registry so early expirations find their handlers.
func NewEngine(
	ledger *actions.Ledger,
	mutes, bans, hides *sanctions.Registry,
	warns *warnings.Service,
	notes *notices.Service,
	enforcer dispatch.Enforcer,
	notifier dispatch.Notifier,
) *Engine {
	e := &Engine{
		ledger:   ledger,
		mutes:    mutes,
		bans:     bans,
		hides:    hides,
		warns:    warns,
		notes:    notes,
		enforcer: enforcer,
		notifier: notifier,
	}

	ledger.OnApprove(actions.FamilyBan, e.applyBan)
	ledger.OnApprove(actions.FamilyWarn, e.applyWarn)

	mutes.SetCallback(e.sanctionExpired)
	bans.SetCallback(e.sanctionExpired)
	hides.SetCallback(e.sanctionExpired)
	notes.SetCallback(e.noticeDue)

	return e
}

// GiveMute places a mute. The sanction enforces immediately; a notice is
// scheduled so the subject learns when it lifts.
func (e *Engine) GiveMute(ctx context.Context, p sanctions.GiveParams, message int64) (*actions.Act, error) {
	act, err := e.mutes.Give(ctx, p)
	if err != nil {
		return nil, err
	}
	e.noticeFor(ctx, act, message)
	e.publish(dispatch.EventSanctionGiven, act)
	return act, nil
}

// RemoveMute lifts a mute and tells the platform to revoke it.
func (e *Engine) RemoveMute(ctx context.Context, user, guild, moderator int64, subtype string, autoReview bool) (*actions.Act, error) {
	return e.removeSanction(ctx, e.mutes, user, guild, moderator, subtype, autoReview)
}

// GiveBan records a ban grant. The ban row lands at approval; pre-reviewed
// grants apply immediately since no approval will follow.
func (e *Engine) GiveBan(ctx context.Context, p sanctions.GiveParams, message int64) (*actions.Act, error) {
	act, err := e.bans.Give(ctx, p)
	if err != nil {
		return nil, err
	}
	if act.Reviewed() {
		if err := e.applyBan(ctx, act); err != nil {
			return nil, err
		}
	}
	e.noticeFor(ctx, act, message)
	e.publish(dispatch.EventSanctionGiven, act)
	return act, nil
}

// RemoveBan lifts a ban.
func (e *Engine) RemoveBan(ctx context.Context, user, guild, moderator int64, scope string, autoReview bool) (*actions.Act, error) {
	return e.removeSanction(ctx, e.bans, user, guild, moderator, scope, autoReview)
}

// GiveHide places an indefinite hide.
func (e *Engine) GiveHide(ctx context.Context, p sanctions.GiveParams) (*actions.Act, error) {
	p.Subtype = ""
	p.Duration = 0
	act, err := e.hides.Give(ctx, p)
	if err != nil {
		return nil, err
	}
	e.publish(dispatch.EventSanctionGiven, act)
	return act, nil
}

// RemoveHide lifts a hide.
func (e *Engine) RemoveHide(ctx context.Context, user, guild, moderator int64, autoReview bool) (*actions.Act, error) {
	return e.removeSanction(ctx, e.hides, user, guild, moderator, "", autoReview)
}

// GiveWarn records a warning. The accumulator moves only at approval.
func (e *Engine) GiveWarn(ctx context.Context, p warnings.GiveParams) (*actions.Act, error) {
	act, err := e.warns.Give(ctx, p)
	if err != nil {
		return nil, err
	}
	if act.Reviewed() {
		if err := e.applyWarn(ctx, act); err != nil {
			return nil, err
		}
	}
	e.publish(dispatch.EventSanctionGiven, act)
	return act, nil
}

// RemoveWarn lifts the subject's oldest active warning.
func (e *Engine) RemoveWarn(ctx context.Context, user, guild, moderator int64, reason string, autoReview bool) (*actions.Act, error) {
	act, err := e.warns.Remove(ctx, user, guild, moderator, reason, autoReview)
	if err != nil {
		return nil, err
	}
	e.publish(dispatch.EventSanctionRemoved, act)
	return act, nil
}

// Approve resolves an act positively, running its family's side effect.
func (e *Engine) Approve(ctx context.Context, id, reviewer int64) error {
	if err := e.ledger.Approve(ctx, id, reviewer); err != nil {
		return err
	}
	metrics.ReviewsTotal.WithLabelValues("approved").Inc()
	return nil
}

// Deactivate resolves an act negatively.
func (e *Engine) Deactivate(ctx context.Context, id, reviewer int64) error {
	if err := e.ledger.Deactivate(ctx, id, reviewer); err != nil {
		return err
	}
	metrics.ReviewsTotal.WithLabelValues("rejected").Inc()
	return nil
}

func (e *Engine) removeSanction(ctx context.Context, reg *sanctions.Registry, user, guild, moderator int64, subtype string, autoReview bool) (*actions.Act, error) {
	act, err := reg.Remove(ctx, user, guild, moderator, subtype, autoReview)
	if err != nil {
		return nil, err
	}
	if err := e.enforcer.Revoke(ctx, user, guild, act.Kind.Counterpart().String()); err != nil {
		log.Error().Err(err).Int64("act", act.ID).Msg("effects: revoke failed after removal")
	}
	e.publish(dispatch.EventSanctionRemoved, act)
	return act, nil
}

// applyBan runs on ban approval: the ban row lands, any hide on the subject
// is folded into the ban, and the platform enforces.
func (e *Engine) applyBan(ctx context.Context, act *actions.Act) error {
	if _, err := e.bans.Apply(ctx, act); err != nil {
		return err
	}

	if e.hides.Active(act.User, act.Guild, "") != nil {
		if _, err := e.hides.Remove(ctx, act.User, act.Guild, act.Moderator, "", true); err != nil {
			log.Error().Err(err).Int64("act", act.ID).Msg("effects: failed to fold hide into ban")
		}
	}

	return nil
}

// applyWarn runs on warn approval: the accumulator moves, and the subject is
// either escalated to a local ban or kicked.
func (e *Engine) applyWarn(ctx context.Context, act *actions.Act) error {
	escalated, err := e.warns.Apply(ctx, act)
	if err != nil {
		return err
	}

	if !escalated {
		if err := e.enforcer.Kick(ctx, act.User, act.Guild, act.Reason); err != nil {
			return err
		}
		e.publish(dispatch.EventUserKicked, act)
		return nil
	}

	banAct, err := e.bans.Give(ctx, sanctions.GiveParams{
		User:       act.User,
		Guild:      act.Guild,
		Moderator:  act.Moderator,
		Subtype:    sanctions.ScopeLocal,
		Duration:   EscalationBanSeconds,
		Reason:     EscalationReason,
		Counting:   false,
		AutoReview: true,
	})
	if err != nil {
		return err
	}
	if err := e.applyBan(ctx, banAct); err != nil {
		return err
	}
	if err := e.warns.Reset(ctx, act.User, act.Guild); err != nil {
		return err
	}

	e.publish(dispatch.EventSanctionGiven, banAct)
	log.Info().
		Int64("user", act.User).
		Int64("guild", act.Guild).
		Int64("act", banAct.ID).
		Msg("effects: warnings escalated to local ban")
	return nil
}

// sanctionExpired runs when a registry timer fires: the platform revokes and
// watchers are told.
func (e *Engine) sanctionExpired(ctx context.Context, s *sanctions.Sanction) error {
	if err := e.enforcer.Revoke(ctx, s.User, s.Guild, s.GrantKind().String()); err != nil {
		return err
	}
	e.notifier.Publish(dispatch.Event{
		Type:  dispatch.EventSanctionExpired,
		At:    time.Now().UTC(),
		User:  s.User,
		Guild: s.Guild,
		Kind:  s.GrantKind().String(),
		Act:   s.Action,
	})
	return nil
}

// noticeDue runs when a notice's wait elapses.
func (e *Engine) noticeDue(_ context.Context, n *notices.Notification) error {
	e.notifier.Publish(dispatch.Event{
		Type:      dispatch.EventNoticeDue,
		At:        time.Now().UTC(),
		User:      n.User,
		Guild:     n.Guild,
		Moderator: n.Moderator,
		Kind:      n.Kind.String(),
	})
	return nil
}

// noticeFor schedules a sanction-end notice for duration-bound grants.
func (e *Engine) noticeFor(ctx context.Context, act *actions.Act, message int64) {
	if act.Duration == 0 {
		return
	}
	if _, err := e.notes.Give(ctx, notices.GiveParams{
		User:      act.User,
		Guild:     act.Guild,
		Moderator: act.Moderator,
		Kind:      act.Kind,
		Duration:  act.Duration,
		Message:   message,
	}); err != nil {
		log.Error().Err(err).Int64("act", act.ID).Msg("effects: failed to schedule notice")
	}
}

func (e *Engine) publish(typ string, act *actions.Act) {
	e.notifier.Publish(dispatch.Event{
		Type:      typ,
		At:        time.Now().UTC(),
		User:      act.User,
		Guild:     act.Guild,
		Moderator: act.Moderator,
		Kind:      act.Kind.String(),
		Act:       act.ID,
		Reason:    act.Reason,
	})
}
