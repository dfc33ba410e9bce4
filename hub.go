package main

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"i4.energy/across/loragw/at"
)

// Hub fans module events out to websocket clients and the MQTT bridge.
//
// It is the modem's EventHandler, so HandleEvent runs on the reader loop.
// Delivery never blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	logger *slog.Logger
	joined atomic.Bool

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscription receives events on C until Close is called.
type Subscription struct {
	C <-chan at.Event

	c       chan at.Event
	hub     *Hub
	dropped atomic.Uint64
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		logger: logger,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber with room for buffer pending events.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	c := make(chan at.Event, buffer)
	s := &Subscription{C: c, c: c, hub: h}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Close unregisters the subscription and closes C. It is safe to call twice.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.c)
}

// Dropped reports how many events this subscriber missed.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// HandleEvent implements modem.EventHandler.
func (h *Hub) HandleEvent(ev at.Event) {
	if jc, ok := ev.(at.JoinCompletion); ok {
		h.joined.Store(jc.Success)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.c <- ev:
		default:
			s.dropped.Add(1)
			h.logger.Warn("subscriber too slow, dropping event", "kind", ev.Kind())
		}
	}
}

// Joined reports the outcome of the most recent join attempt.
func (h *Hub) Joined() bool {
	return h.joined.Load()
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
