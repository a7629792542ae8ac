package orch

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/seshd/internal/app"
	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/rs/zerolog/log"
)

// gate buffers hub events until the subscriber's FullSync has been sent,
// then passes them through without duplicates.
type gate struct {
	mu      sync.Mutex
	live    bool
	pending []domain.Event
	last    uint64
	send    func(domain.Event) error
}

func (g *gate) offer(ev domain.Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.live {
		g.pending = append(g.pending, ev)
		return nil
	}
	return g.forward(ev)
}

// forward sends ev unless it is a sequenced event the subscriber has
// already seen. Must hold mu.
func (g *gate) forward(ev domain.Event) error {
	if ev.Sequenced() && ev.Sequence <= g.last {
		return nil
	}
	if err := g.send(ev); err != nil {
		return err
	}
	if ev.Sequenced() {
		g.last = ev.Sequence
	}
	return nil
}

// open sends the snapshot, flushes what arrived meanwhile and goes live.
func (g *gate) open(snapshot domain.Event, seq uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.send(snapshot); err != nil {
		return err
	}
	g.last = seq
	for _, ev := range g.pending {
		if err := g.forward(ev); err != nil {
			return err
		}
	}
	g.pending = nil
	g.live = true
	return nil
}

// SubscribeQueue streams sid's events to send, starting with a FullSync.
// The client must be a member. The returned func unsubscribes.
func (o *Orchestrator) SubscribeQueue(_ context.Context, clientID domain.ClientID, sid domain.SessionID, send func(domain.Event) error) (func(), error) {
	if err := domain.ValidateSessionID(sid); err != nil {
		return nil, err
	}
	room, ok := o.Rooms.Get(sid)
	if !ok || o.Registry.SessionOf(clientID) != sid || !room.HasMember(clientID) {
		return nil, o.denied(clientID, sid, "subscribe")
	}

	g := &gate{send: o.withPolicy(clientID, sid, send)}
	unsubscribe := o.Hub.Subscribe(sid, g.offer)

	state := room.State()
	snapshot := domain.Event{
		SessionID: sid,
		Sequence:  state.Sequence,
		CreatedAt: o.now(),
		Payload:   domain.FullSync{State: state},
	}
	if err := g.open(snapshot, state.Sequence); err != nil {
		unsubscribe()
		return nil, err
	}
	log.Info().Str("module", "app.orch").Str("client_id", string(clientID)).Str("session_id", string(sid)).
		Uint64("sequence", state.Sequence).Msg("subscribed")
	return unsubscribe, nil
}

// withPolicy applies the backpressure policy when send reports a full
// outbound buffer.
func (o *Orchestrator) withPolicy(clientID domain.ClientID, sid domain.SessionID, send func(domain.Event) error) func(domain.Event) error {
	return func(ev domain.Event) error {
		err := send(ev)
		if err == nil || o.Policy == nil || !errors.Is(err, core.ErrBackpressure) {
			return err
		}
		switch o.Policy.OnBackPressure(sid, clientID, ev) {
		case app.KickMember:
			log.Warn().Str("module", "app.orch").Str("client_id", string(clientID)).
				Str("session_id", string(sid)).Msg("slow subscriber kicked")
			o.Registry.Cancel(clientID)
		case app.DropFrame, app.NoAction:
		}
		return err
	}
}
