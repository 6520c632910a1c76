package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current counts for gauge metrics.
// Nil functions are skipped.
type StatsSource struct {
	ActiveSanctions  func() map[string]int // keyed by family
	ActiveWarnings   func() int
	PendingRequests  func() int
	ScheduledNotices func() int
	EventSubscribers func() int
}

// StartCollector launches a goroutine that periodically updates gauge metrics.
// It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	// Do an initial collection immediately
	collect(src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(src StatsSource) {
	if src.ActiveSanctions != nil {
		for family, count := range src.ActiveSanctions() {
			SanctionsActive.WithLabelValues(family).Set(float64(count))
		}
	}
	if src.ActiveWarnings != nil {
		WarningsActive.Set(float64(src.ActiveWarnings()))
	}
	if src.PendingRequests != nil {
		RoleRequestsPending.Set(float64(src.PendingRequests()))
	}
	if src.ScheduledNotices != nil {
		NoticesScheduled.Set(float64(src.ScheduledNotices()))
	}
	if src.EventSubscribers != nil {
		EventSubscribers.Set(float64(src.EventSubscribers()))
	}
}
