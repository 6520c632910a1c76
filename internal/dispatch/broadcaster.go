package dispatch

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tangled.org/vigil.community/vigil/internal/metrics"
)

const (
	writeWait       = 10 * time.Second
	pingPeriod      = 30 * time.Second
	subscriberSlack = 64
)

// Broadcaster fans enforcement events out to websocket subscribers. Slow
// subscribers are disconnected rather than allowed to stall the engine.
type Broadcaster struct {
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		subs: make(map[chan Event]struct{}),
	}
}

// Publish delivers the event to every connected subscriber. Never blocks; a
// subscriber whose buffer is full loses the event and will be dropped by its
// own write failure or ping timeout.
func (b *Broadcaster) Publish(ev Event) {
	metrics.DispatchEventsTotal.WithLabelValues(ev.Type).Inc()

	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	b.mu.Unlock()
}

// Subscribers returns the current subscriber count, for the gauge collector.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// ServeHTTP upgrades the request and streams events as JSON text messages
// until the client disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("dispatch: websocket upgrade failed")
		return
	}

	ch := make(chan Event, subscriberSlack)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	metrics.EventSubscribers.Inc()

	defer func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		metrics.EventSubscribers.Dec()
		conn.Close()
	}()

	// Reader only consumes control frames; any read error ends the session.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
