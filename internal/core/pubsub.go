package core

import (
	"fmt"
	"sync"

	"github.com/dkeye/seshd/internal/domain"
	"github.com/rs/zerolog/log"
)

// Hub fans events out to the live subscribers of a session. It knows
// nothing about transports.
type Hub struct {
	mu   sync.RWMutex
	subs map[domain.SessionID]map[uint64]Subscriber
	next uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[domain.SessionID]map[uint64]Subscriber)}
}

// Subscribe registers fn for sid. The returned func unsubscribes and is safe
// to call more than once.
func (h *Hub) Subscribe(sid domain.SessionID, fn Subscriber) (unsubscribe func()) {
	h.mu.Lock()
	h.next++
	id := h.next
	set, ok := h.subs[sid]
	if !ok {
		set = make(map[uint64]Subscriber)
		h.subs[sid] = set
	}
	set[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(sid, id) })
	}
}

func (h *Hub) remove(sid domain.SessionID, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sid]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(h.subs, sid)
	}
}

// Publish calls every subscriber of sid. A failing or panicking subscriber is
// logged and skipped; it never affects the others.
func (h *Hub) Publish(sid domain.SessionID, ev domain.Event) PublishResult {
	h.mu.RLock()
	set := h.subs[sid]
	targets := make([]Subscriber, 0, len(set))
	for _, fn := range set {
		targets = append(targets, fn)
	}
	h.mu.RUnlock()

	res := PublishResult{}
	for _, fn := range targets {
		if err := deliver(fn, ev); err != nil {
			res.Failed++
			log.Warn().Err(err).Str("module", "core.pubsub").Str("session_id", string(sid)).
				Uint64("sequence", ev.Sequence).Msg("subscriber failed")
			continue
		}
		res.Delivered++
	}
	log.Debug().Str("module", "core.pubsub").Str("session_id", string(sid)).
		Int("delivered", res.Delivered).Int("failed", res.Failed).Msg("publish result")
	return res
}

func deliver(fn Subscriber, ev domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	return fn(ev)
}

func (h *Hub) SubscriberCount(sid domain.SessionID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sid])
}

func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = make(map[domain.SessionID]map[uint64]Subscriber)
}
