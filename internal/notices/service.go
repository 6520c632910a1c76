package notices

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/expiry"
	"tangled.org/vigil.community/vigil/internal/metrics"
	"tangled.org/vigil.community/vigil/internal/moderr"
)

// Callback handles a notice that came due. The row is already marked expired
// when it runs.
type Callback func(ctx context.Context, n *Notification) error

// Service owns notification scheduling. It mirrors the sanction registries:
// an in-memory index rebuilt on Load, one timer per pending notice, and a
// callback gate so early expirations wait for wiring.
type Service struct {
	store Store
	sched *expiry.Scheduler

	mu       sync.Mutex
	live     map[int64]*Notification
	callback Callback
}

// NewService creates the notices service.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		sched: expiry.NewScheduler(),
		live:  make(map[int64]*Notification),
	}
}

// SetCallback registers the due-notice handler. Must be called before Load
// or due notices will wait; they are never dropped.
func (s *Service) SetCallback(cb Callback) {
	s.mu.Lock()
	s.callback = cb
	s.mu.Unlock()
	s.sched.SetHandler(s.onExpire)
}

// Load rehydrates pending notices and re-registers their timers. Notices
// already past due fire immediately.
func (s *Service) Load(ctx context.Context) error {
	rows, err := s.store.ListActive(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.live = make(map[int64]*Notification, len(rows))
	for i := range rows {
		n := rows[i]
		s.live[n.ID] = &n
	}
	s.mu.Unlock()

	for i := range rows {
		n := rows[i]
		s.sched.Schedule(key(n.ID), expiry.End(n.At, n.Duration))
	}

	metrics.NoticesScheduled.Set(float64(len(rows)))
	log.Info().Int("pending", len(rows)).Msg("notices: service loaded")
	return nil
}

// GiveParams describes a new notice.
type GiveParams struct {
	User      int64
	Guild     int64
	Moderator int64
	Kind      actions.Kind
	Duration  int64 // seconds
	Message   int64
}

// Give schedules a sanction-end notice.
func (s *Service) Give(ctx context.Context, p GiveParams) (*Notification, error) {
	n := &Notification{
		User:      p.User,
		Guild:     p.Guild,
		Moderator: p.Moderator,
		Kind:      p.Kind,
		At:        time.Now().UTC(),
		Duration:  p.Duration,
		Message:   p.Message,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.live[n.ID] = n
	s.mu.Unlock()

	s.sched.Schedule(key(n.ID), expiry.End(n.At, n.Duration))
	metrics.NoticesScheduled.Inc()
	return n, nil
}

// Notify acknowledges delivery of a notice. Delivery happens after the wait
// elapses, so a notice that has not expired yet cannot be acknowledged; a
// second acknowledgement fails with ErrConflict.
func (s *Service) Notify(ctx context.Context, id int64) error {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if !n.Expired {
		return moderr.Conflictf("notification %d not yet due", id)
	}
	if n.Notified {
		return moderr.Conflictf("notification %d already delivered", id)
	}
	return s.store.MarkNotified(ctx, id)
}

// Get returns a notification by id.
func (s *Service) Get(ctx context.Context, id int64) (*Notification, error) {
	return s.store.GetNotification(ctx, id)
}

// PendingCount returns how many notices are scheduled, for the gauge
// collector.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Stop cancels all pending timers, for shutdown.
func (s *Service) Stop() { s.sched.Stop() }

func (s *Service) onExpire(k string) {
	ctx := context.Background()
	id, err := strconv.ParseInt(k, 10, 64)
	if err != nil {
		log.Error().Str("key", k).Msg("notices: malformed timer key")
		return
	}

	s.mu.Lock()
	n, ok := s.live[id]
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.store.MarkExpired(ctx, id); err != nil {
		log.Error().Err(err).Int64("notification", id).Msg("notices: failed to mark notice expired")
		return
	}

	s.mu.Lock()
	delete(s.live, id)
	cb := s.callback
	s.mu.Unlock()

	metrics.NoticesExpiredTotal.Inc()
	metrics.NoticesScheduled.Dec()

	if cb == nil {
		return
	}
	if err := cb(ctx, n); err != nil {
		log.Error().Err(err).Int64("notification", id).Msg("notices: delivery callback failed")
	}
}

func key(id int64) string { return strconv.FormatInt(id, 10) }
