package sanctions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/expiry"
	"tangled.org/vigil.community/vigil/internal/metrics"
	"tangled.org/vigil.community/vigil/internal/moderr"
	"tangled.org/vigil.community/vigil/internal/tracing"
)

// Callback handles a sanction that expired naturally. By the time it runs the
// row is already gone from storage; a callback error means the enforcement
// revocation failed, but the sanction is still considered lifted.
type Callback func(ctx context.Context, s *Sanction) error

// Registry owns the active sanctions of one family. It wraps the ledger for
// act recording, the store for durable rows, and an expiry scheduler for
// duration-bound records. The in-memory index is never authoritative: it is
// rebuilt from the store on Load and mutated only after the store.
type Registry struct {
	family actions.Family
	store  Store
	ledger *actions.Ledger
	sched  *expiry.Scheduler

	// applyOnGive inserts the sanction row at grant time. Mutes and hides
	// enforce immediately; bans enforce at approval via Apply.
	applyOnGive bool

	mu       sync.Mutex
	live     map[string]*Sanction
	callback Callback
}

// NewRegistry creates the registry for a sanction family. applyOnGive selects
// whether Give inserts the enforcement row itself or defers to Apply from the
// approval side effect.
func NewRegistry(family actions.Family, store Store, ledger *actions.Ledger, applyOnGive bool) *Registry {
	r := &Registry{
		family:      family,
		store:       store,
		ledger:      ledger,
		sched:       expiry.NewScheduler(),
		applyOnGive: applyOnGive,
		live:        make(map[string]*Sanction),
	}
	return r
}

// SetCallback registers the expiration handler. It must be called before Load
// or any expirations that come due will block until it is; they are never
// dropped.
func (r *Registry) SetCallback(cb Callback) {
	r.mu.Lock()
	r.callback = cb
	r.mu.Unlock()
	r.sched.SetHandler(r.onExpire)
}

// Load rehydrates active sanctions from the store and re-registers a timer
// for every duration-bound record. Records already past due fire immediately
// so no expiration is missed across a restart.
func (r *Registry) Load(ctx context.Context) error {
	rows, err := r.store.ListSanctions(ctx, r.family)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.live = make(map[string]*Sanction, len(rows))
	for i := range rows {
		s := rows[i]
		r.live[s.Key()] = &s
	}
	r.mu.Unlock()

	for i := range rows {
		s := rows[i]
		if s.Indefinite() {
			continue
		}
		r.sched.Schedule(s.Key(), expiry.End(s.Start, s.Duration))
	}

	metrics.SanctionsActive.WithLabelValues(string(r.family)).Set(float64(len(rows)))
	log.Info().
		Str("family", string(r.family)).
		Int("active", len(rows)).
		Msg("sanctions: registry loaded")
	return nil
}

// GiveParams describes a new sanction grant.
type GiveParams struct {
	User      int64
	Guild     int64
	Moderator int64

	// Subtype narrows the family: text|voice|full for mutes, local|global
	// for bans, empty for hides.
	Subtype string

	// Duration in seconds; zero for indefinite records.
	Duration int64

	Reason     string
	ProveLink  string
	Counting   bool
	AutoReview bool
}

// Give records the grant act and, for immediately-enforcing families, inserts
// the sanction row and schedules its expiration. Fails with ErrConflict when
// an active sanction already exists for the key.
func (r *Registry) Give(ctx context.Context, p GiveParams) (act *actions.Act, err error) {
	ctx, span := tracing.SanctionSpan(ctx, "give", string(r.family), p.User)
	defer func() {
		tracing.EndWithError(span, err)
		span.End()
	}()

	key := Key(r.family, p.Subtype, p.User, p.Guild)

	// Fast-fail before touching the ledger. The authoritative guard is the
	// store's atomic conditional insert below.
	if existing, err := r.store.GetSanction(ctx, key); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, moderr.Conflictf("active %s sanction exists for user %d", r.family, p.User)
	}

	act, err = r.ledger.Record(ctx, actions.RecordParams{
		User:      p.User,
		Guild:     p.Guild,
		Moderator: p.Moderator,
		Kind: actions.Kind{
			Family:    r.family,
			Direction: actions.DirectionGive,
			Subtype:   p.Subtype,
		},
		Counting:   p.Counting,
		Duration:   p.Duration,
		Reason:     p.Reason,
		ProveLink:  p.ProveLink,
		AutoReview: p.AutoReview,
	})
	if err != nil {
		return nil, err
	}

	if r.applyOnGive {
		if _, err := r.Apply(ctx, act); err != nil {
			if errors.Is(err, moderr.ErrConflict) {
				// Lost the insert race: close the act we just wrote so the
				// ledger does not carry an open grant with no sanction.
				if derr := r.ledger.Deactivate(ctx, act.ID, p.Moderator); derr != nil {
					log.Error().Err(derr).Int64("act", act.ID).Msg("sanctions: failed to close racing grant act")
				}
			}
			return nil, err
		}
	}

	metrics.SanctionsGiven.WithLabelValues(string(r.family)).Inc()
	return act, nil
}

// Apply inserts the enforcement row for a grant act and schedules its
// expiration. For bans this runs from the approval side effect; for other
// families Give calls it directly.
func (r *Registry) Apply(ctx context.Context, act *actions.Act) (*Sanction, error) {
	if act.Kind.Family != r.family || act.Kind.Direction != actions.DirectionGive {
		return nil, moderr.NotFoundf("act %d is not a %s grant", act.ID, r.family)
	}

	s := &Sanction{
		User:     act.User,
		Family:   r.family,
		Subtype:  act.Kind.Subtype,
		Guild:    act.Guild,
		Action:   act.ID,
		Start:    time.Now().UTC(),
		Duration: act.Duration,
	}

	if err := r.store.CreateSanction(ctx, s); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.live[s.Key()] = s
	r.mu.Unlock()

	if !s.Indefinite() {
		r.sched.Schedule(s.Key(), expiry.End(s.Start, s.Duration))
	}

	metrics.SanctionsActive.WithLabelValues(string(r.family)).Inc()
	return s, nil
}

// Remove lifts an active sanction: records the removal act (which closes the
// grant act in the ledger), deletes the row and cancels any pending timer.
// Fails with ErrNotFound when no active sanction matches.
func (r *Registry) Remove(ctx context.Context, user, guild, moderator int64, subtype string, autoReview bool) (act *actions.Act, err error) {
	ctx, span := tracing.SanctionSpan(ctx, "remove", string(r.family), user)
	defer func() {
		tracing.EndWithError(span, err)
		span.End()
	}()

	key := Key(r.family, subtype, user, guild)

	s, err := r.store.GetSanction(ctx, key)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, moderr.NotFoundf("no active %s sanction for user %d", r.family, user)
	}

	act, err = r.ledger.Record(ctx, actions.RecordParams{
		User:      user,
		Guild:     guild,
		Moderator: moderator,
		Kind: actions.Kind{
			Family:    r.family,
			Direction: actions.DirectionRemove,
			Subtype:   subtype,
		},
		Counting:   false,
		AutoReview: autoReview,
	})
	if err != nil {
		return nil, err
	}

	deleted, err := r.store.DeleteSanction(ctx, key)
	if err != nil {
		return nil, err
	}

	r.sched.Cancel(key)

	r.mu.Lock()
	delete(r.live, key)
	r.mu.Unlock()

	metrics.SanctionsRemoved.WithLabelValues(string(r.family)).Inc()
	// When expiry beat the removal to the row its path settled the gauge.
	if deleted {
		metrics.SanctionsActive.WithLabelValues(string(r.family)).Dec()
	}
	return act, nil
}

// Active returns the live sanction for a key, or nil.
func (r *Registry) Active(user, guild int64, subtype string) *Sanction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[Key(r.family, subtype, user, guild)]
}

// ByUser returns the user's active sanctions of this family from the store.
func (r *Registry) ByUser(ctx context.Context, user int64) ([]Sanction, error) {
	all, err := r.store.SanctionsByUser(ctx, user)
	if err != nil {
		return nil, err
	}
	var out []Sanction
	for _, s := range all {
		if s.Family == r.family {
			out = append(out, s)
		}
	}
	return out, nil
}

// Stop cancels all pending timers, for shutdown.
func (r *Registry) Stop() { r.sched.Stop() }

// onExpire runs when a timer fires. The record may have been removed
// concurrently; if it is no longer live, or the row is already gone, the
// firing is a silent no-op. The callback runs only when this path deleted
// the row, so a remove racing the timer cannot produce a second lift.
func (r *Registry) onExpire(key string) {
	ctx := context.Background()

	r.mu.Lock()
	s, ok := r.live[key]
	r.mu.Unlock()
	if !ok {
		return
	}

	deleted, err := r.store.DeleteSanction(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("sanctions: failed to delete expired sanction")
		return
	}
	if !deleted {
		r.mu.Lock()
		delete(r.live, key)
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	delete(r.live, key)
	cb := r.callback
	r.mu.Unlock()

	metrics.SanctionsExpired.WithLabelValues(string(r.family)).Inc()
	metrics.SanctionsActive.WithLabelValues(string(r.family)).Dec()

	log.Info().
		Str("family", string(r.family)).
		Int64("user", s.User).
		Int64("guild", s.Guild).
		Int64("act", s.Action).
		Msg("sanctions: sanction expired")

	if cb == nil {
		return
	}
	if err := cb(ctx, s); err != nil {
		// The row is already gone; the sanction is lifted regardless.
		log.Error().Err(err).Str("key", key).Msg("sanctions: expiration callback failed")
	}
}
