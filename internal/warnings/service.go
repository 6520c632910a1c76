package warnings

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/metrics"
	"tangled.org/vigil.community/vigil/internal/moderr"
)

// Service owns warning issuance and the accumulator lifecycle. Accumulators
// change only when a warn grant is approved, never at issuance.
type Service struct {
	store  Store
	ledger *actions.Ledger
}

// NewService creates the warnings service.
func NewService(store Store, ledger *actions.Ledger) *Service {
	return &Service{store: store, ledger: ledger}
}

// GiveParams describes a new warning.
type GiveParams struct {
	User       int64
	Guild      int64
	Moderator  int64
	Reason     string
	ProveLink  string
	AutoReview bool
}

// Give records a warning grant in the ledger. The accumulator is untouched
// until the grant is approved.
func (s *Service) Give(ctx context.Context, p GiveParams) (*actions.Act, error) {
	return s.ledger.Record(ctx, actions.RecordParams{
		User:       p.User,
		Guild:      p.Guild,
		Moderator:  p.Moderator,
		Kind:       actions.WarnKind(actions.DirectionGive),
		Counting:   true,
		Reason:     p.Reason,
		ProveLink:  p.ProveLink,
		AutoReview: p.AutoReview,
	})
}

// Apply adds an approved warn grant to the subject's accumulator and reports
// whether the active count reached the escalation threshold. Applying the
// same act twice does not double-count, and the accumulator is not cleared
// here: the caller resets it only after the escalation sanction lands, so a
// failed escalation can be retried.
func (s *Service) Apply(ctx context.Context, act *actions.Act) (bool, error) {
	a, err := s.store.GetAccumulator(ctx, act.User, act.Guild)
	if err != nil {
		return false, err
	}
	if a == nil {
		a = &Accumulator{User: act.User, Guild: act.Guild}
	}

	now := time.Now().UTC()
	if !a.has(act.ID) {
		a.Givens = append(a.Givens, Given{At: now, Act: act.ID})
		if err := s.store.PutAccumulator(ctx, a); err != nil {
			return false, err
		}
	}

	active := a.ActiveCount(now)
	log.Info().
		Int64("user", act.User).
		Int64("guild", act.Guild).
		Int64("act", act.ID).
		Int("active", active).
		Msg("warnings: warning applied")

	return active >= Threshold, nil
}

// Reset clears the subject's accumulator. Called after an escalation sanction
// has been placed.
func (s *Service) Reset(ctx context.Context, user, guild int64) error {
	if err := s.store.DeleteAccumulator(ctx, user, guild); err != nil {
		return err
	}
	metrics.EscalationsTotal.Inc()
	log.Info().Int64("user", user).Int64("guild", guild).Msg("warnings: accumulator reset after escalation")
	return nil
}

// Remove lifts the subject's oldest still-active warning: it records the
// removal act and drops the given from the accumulator. Fails with
// ErrNotFound when no warning is inside the window.
func (s *Service) Remove(ctx context.Context, user, guild, moderator int64, reason string, autoReview bool) (*actions.Act, error) {
	a, err := s.store.GetAccumulator(ctx, user, guild)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	oldest := -1
	if a != nil {
		for i, g := range a.Givens {
			if now.Sub(g.At) >= Window {
				continue
			}
			if oldest == -1 || g.At.Before(a.Givens[oldest].At) {
				oldest = i
			}
		}
	}
	if oldest == -1 {
		return nil, moderr.NotFoundf("no active warning for user %d", user)
	}

	act, err := s.ledger.Record(ctx, actions.RecordParams{
		User:       user,
		Guild:      guild,
		Moderator:  moderator,
		Kind:       actions.WarnKind(actions.DirectionRemove),
		Reason:     reason,
		AutoReview: autoReview,
	})
	if err != nil {
		return nil, err
	}

	a.Givens = append(a.Givens[:oldest], a.Givens[oldest+1:]...)
	if a.Count == 0 && len(a.Givens) == 0 {
		err = s.store.DeleteAccumulator(ctx, user, guild)
	} else {
		err = s.store.PutAccumulator(ctx, a)
	}
	if err != nil {
		return nil, err
	}

	return act, nil
}

// Active returns the subject's current warning load.
func (s *Service) Active(ctx context.Context, user, guild int64) (int, error) {
	a, err := s.store.GetAccumulator(ctx, user, guild)
	if err != nil {
		return 0, err
	}
	if a == nil {
		return 0, nil
	}
	return a.ActiveCount(time.Now().UTC()), nil
}

// ActiveAccumulators returns how many accumulators carry a nonzero load,
// for the gauge collector.
func (s *Service) ActiveAccumulators(ctx context.Context) (int, error) {
	all, err := s.store.ListAccumulators(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	n := 0
	for i := range all {
		if all[i].ActiveCount(now) > 0 {
			n++
		}
	}
	return n, nil
}
