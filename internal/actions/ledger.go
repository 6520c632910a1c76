package actions

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tangled.org/vigil.community/vigil/internal/moderr"
)

// ReasonPlaceholder marks category header rows in the reason picker. A reason
// still carrying it means the moderator never completed the selection, so the
// record is rejected before any write happens.
const ReasonPlaceholder = "[category]"

// ApproveEffect runs the kind-family side effect of an approval (apply the
// sanction for real, run escalation). Approval and side effect are one logical
// step: if the effect fails, the reviewer field is not committed.
type ApproveEffect func(ctx context.Context, act *Act) error

// RecordParams describes a new ledger entry.
type RecordParams struct {
	User      int64
	Guild     int64
	Moderator int64
	Kind      Kind
	Counting  bool
	Duration  int64 // seconds, 0 = none
	Reason    string
	ProveLink string

	// AutoReview marks the act as reviewed by its own moderator at creation,
	// used when the issuing moderator's tier does not require a second line.
	AutoReview bool
}

// Ledger is the append-only log of moderation actions and the owner of their
// review state. All sanction creation and removal routes through it.
type Ledger struct {
	store Store

	// Approve side effects per family, injected at wiring time so the
	// dependency is visible in the type graph.
	effects map[Family]ApproveEffect
}

// NewLedger creates a ledger over the given store.
func NewLedger(store Store) *Ledger {
	return &Ledger{
		store:   store,
		effects: make(map[Family]ApproveEffect),
	}
}

// OnApprove registers the approval side effect for a kind family.
// Must be called during wiring, before the ledger serves requests.
func (l *Ledger) OnApprove(f Family, effect ApproveEffect) {
	l.effects[f] = effect
}

// Record appends a new act, assigning the next id. For non-role removal kinds
// it first finds the latest active counterpart grant for (user, guild) and
// deactivates it, so a grant is closed exactly when its removal is recorded
// even if the caller never did so explicitly.
func (l *Ledger) Record(ctx context.Context, p RecordParams) (*Act, error) {
	if strings.Contains(p.Reason, ReasonPlaceholder) {
		return nil, moderr.InvalidReasonf("reason contains unresolved placeholder")
	}

	if p.Kind.Direction == DirectionRemove && p.Kind.Family != FamilyRole {
		// A global grant may have been recorded under a different guild than
		// the one lifting it.
		guild := p.Guild
		if p.Kind.IsGlobal() {
			guild = 0
		}
		grant, err := l.store.LastActive(ctx, p.User, guild, p.Kind.Counterpart())
		if err != nil {
			return nil, err
		}
		if grant != nil {
			if err := l.store.DeactivateAct(ctx, grant.ID, p.Moderator); err != nil {
				return nil, err
			}
		}
	}

	act := &Act{
		At:        time.Now().UTC(),
		Active:    true,
		User:      p.User,
		Guild:     p.Guild,
		Moderator: p.Moderator,
		Kind:      p.Kind,
		Counting:  p.Counting,
		Duration:  p.Duration,
		Reason:    p.Reason,
		ProveLink: p.ProveLink,
	}
	if p.AutoReview {
		act.Reviewer = p.Moderator
	}

	if err := l.store.CreateAct(ctx, act); err != nil {
		return nil, err
	}

	log.Info().
		Int64("act", act.ID).
		Str("kind", act.Kind.String()).
		Int64("user", act.User).
		Int64("guild", act.Guild).
		Int64("moderator", act.Moderator).
		Bool("counting", act.Counting).
		Msg("ledger: act recorded")

	return act, nil
}

// Get returns the act with the given id.
func (l *Ledger) Get(ctx context.Context, id int64) (*Act, error) {
	return l.store.GetAct(ctx, id)
}

// Deactivate resolves an act negatively: the reviewer is recorded and the act
// stops counting toward escalation and default history. Re-deactivating is
// harmless; callers serialize per act id.
func (l *Ledger) Deactivate(ctx context.Context, id, reviewer int64) error {
	if err := l.store.DeactivateAct(ctx, id, reviewer); err != nil {
		return err
	}
	log.Info().Int64("act", id).Int64("reviewer", reviewer).Msg("ledger: act deactivated")
	return nil
}

// Approve resolves an act positively. For families with a registered effect
// (ban, warn) the effect runs first and the reviewer is committed only if it
// succeeds, so a failed side effect leaves the act open for retry.
func (l *Ledger) Approve(ctx context.Context, id, reviewer int64) error {
	act, err := l.store.GetAct(ctx, id)
	if err != nil {
		return err
	}
	if act.Reviewed() {
		return moderr.Conflictf("act %d already reviewed", id)
	}

	if effect, ok := l.effects[act.Kind.Family]; ok && act.Kind.Direction == DirectionGive {
		if err := effect(ctx, act); err != nil {
			return err
		}
	}

	if err := l.store.SetReviewer(ctx, id, reviewer); err != nil {
		return err
	}

	log.Info().Int64("act", id).Int64("reviewer", reviewer).Msg("ledger: act approved")
	return nil
}

// AttachProof attaches an evidence link to an existing act.
func (l *Ledger) AttachProof(ctx context.Context, id int64, link string) error {
	return l.store.SetProveLink(ctx, id, link)
}

// ByUser lists acts against a subject, filtered by the query.
func (l *Ledger) ByUser(ctx context.Context, user int64, q UserQuery) ([]Act, error) {
	return l.store.ActsByUser(ctx, user, q)
}

// ByModerator lists acts issued by a moderator, filtered by the query.
func (l *Ledger) ByModerator(ctx context.Context, moderator int64, q ModeratorQuery) ([]Act, error) {
	return l.store.ActsByModerator(ctx, moderator, q)
}

// ByGuild lists every act recorded in a guild, oldest first. Used by the
// audit export.
func (l *Ledger) ByGuild(ctx context.Context, guild int64) ([]Act, error) {
	return l.store.ActsByGuild(ctx, guild)
}

// SimilarPair is a moderator/subject pair with repeated counted actions,
// surfaced for abuse detection.
type SimilarPair struct {
	Moderator int64 `json:"moderator"`
	User      int64 `json:"user"`
	Count     int   `json:"count"`
}

// Similar aggregates moderator/subject pairs with more than one counted act
// in the guild, most repeated first.
func (l *Ledger) Similar(ctx context.Context, guild int64) ([]SimilarPair, error) {
	acts, err := l.store.ActsByGuild(ctx, guild)
	if err != nil {
		return nil, err
	}

	type pairKey struct{ moderator, user int64 }
	counts := make(map[pairKey]int)
	for _, act := range acts {
		if !act.Counting {
			continue
		}
		counts[pairKey{act.Moderator, act.User}]++
	}

	var pairs []SimilarPair
	for k, n := range counts {
		if n < 2 {
			continue
		}
		pairs = append(pairs, SimilarPair{Moderator: k.moderator, User: k.user, Count: n})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		if pairs[i].Moderator != pairs[j].Moderator {
			return pairs[i].Moderator < pairs[j].Moderator
		}
		return pairs[i].User < pairs[j].User
	})
	return pairs, nil
}
