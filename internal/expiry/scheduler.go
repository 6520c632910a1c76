// Package expiry owns the pending timers for time-bound moderation records.
// Each active record has exactly one suspended wait; firing is exactly-once
// and racing cancellations resolve through the owner's presence check.
package expiry

import (
	"math"
	"sync"
	"time"
)

// Handler is invoked with the record key when its timer fires. Owners look up
// their record, verify it is still live, mutate storage and then run their
// expiration callback.
type Handler func(key string)

// Scheduler keeps one pending timer per key. A handler must be registered via
// SetHandler before any timer may fire; timers that come due earlier block on
// a one-shot signal until registration completes, so expirations loaded from
// storage ahead of wiring are delayed, never dropped.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	handler Handler

	// ready is closed once by SetHandler.
	ready     chan struct{}
	readyOnce sync.Once
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		ready:  make(chan struct{}),
	}
}

// SetHandler registers the expiration handler and releases any waits that
// came due before registration. Subsequent calls replace the handler but the
// gate opens only once.
func (s *Scheduler) SetHandler(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

// Schedule begins (or restarts) the suspended wait for a key. A wake time in
// the past fires immediately rather than being dropped, which covers records
// rehydrated after a restart with already-elapsed durations.
func (s *Scheduler) Schedule(key string, wakeAt time.Time) {
	d := time.Until(wakeAt)
	if d < 0 {
		d = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[key]; ok {
		old.Stop()
	}
	s.timers[key] = time.AfterFunc(d, func() { s.fire(key) })
}

// Cancel stops the pending wait for a key. Best-effort: a timer already
// in-flight proceeds and must be made harmless by the owner's presence check.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// Pending returns the number of scheduled waits.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels all pending waits, for shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}

func (s *Scheduler) fire(key string) {
	<-s.ready

	s.mu.Lock()
	delete(s.timers, key)
	h := s.handler
	s.mu.Unlock()

	h(key)
}

// End computes start + seconds, clamping on overflow to the maximum
// representable instant so permanent-equivalent durations schedule instead of
// erroring.
func End(start time.Time, seconds int64) time.Time {
	if seconds > math.MaxInt64/int64(time.Second) {
		return start.Add(time.Duration(math.MaxInt64))
	}
	return start.Add(time.Duration(seconds) * time.Second)
}
