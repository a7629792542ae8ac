package orch

import (
	"context"
	"errors"

	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/rs/zerolog/log"
)

// MutateQueue replaces the session's queue and current item. It is the only
// way queue contents change. The returned Delta has already been published.
func (o *Orchestrator) MutateQueue(ctx context.Context, clientID domain.ClientID, sid domain.SessionID, m domain.Mutation) (domain.Event, error) {
	if err := domain.ValidateSessionID(sid); err != nil {
		return domain.Event{}, err
	}
	if o.Registry.SessionOf(clientID) != sid {
		return domain.Event{}, o.denied(clientID, sid, "mutate queue")
	}
	m, err := m.Normalize()
	if err != nil {
		return domain.Event{}, err
	}
	// Catalog lookups stay outside the room's write scope.
	o.enrich(ctx, m.Queue, m.CurrentItem)

	room, ok := o.acquireExisting(sid)
	if !ok {
		return domain.Event{}, o.denied(clientID, sid, "mutate queue")
	}
	defer room.Unlock()
	if !room.HasMember(clientID) {
		return domain.Event{}, o.denied(clientID, sid, "mutate queue")
	}

	cur := room.State()
	if m.ExpectedSequence != nil && *m.ExpectedSequence != cur.Sequence {
		return domain.Event{}, domain.VersionConflict(sid, *m.ExpectedSequence, cur.Sequence)
	}
	next := domain.QueueState{
		Queue:       m.Queue,
		CurrentItem: m.CurrentItem,
		Sequence:    cur.Sequence + 1,
	}
	next.StateHash = core.StateHash(next.ItemIDs(), next.CurrentID())

	now := o.now()
	if err := o.storage(ctx, "replace queue", func(ctx context.Context) error {
		return o.Store.ReplaceQueue(ctx, sid, next, cur.Sequence)
	}); err != nil {
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.Event{}, err
		}
		log.Warn().Str("module", "app.orch").Str("session_id", string(sid)).
			Uint64("sequence", cur.Sequence).Msg("store is ahead of the live room")
		landed, rerr := o.reconcile(ctx, room, next)
		if rerr != nil {
			return domain.Event{}, rerr
		}
		if !landed {
			return domain.Event{}, err
		}
	}
	o.bestEffort(ctx, "touch session", sid, func(ctx context.Context) error {
		return o.Store.TouchSession(ctx, sid, domain.StatusActive, now)
	})

	room.SetState(next)
	if o.Log.LastSequence(sid) != cur.Sequence {
		o.Log.Seed(sid, cur.Sequence)
	}
	ev := o.Log.Append(sid, domain.Delta{
		Queue:         next.Queue,
		CurrentItem:   next.CurrentItem,
		StateHash:     next.StateHash,
		ClientID:      clientID,
		CorrelationID: m.CorrelationID,
	})
	o.publish(sid, ev)
	log.Debug().Str("module", "app.orch").Str("session_id", string(sid)).Str("client_id", string(clientID)).
		Uint64("sequence", ev.Sequence).Int("items", len(next.Queue)).Msg("queue mutated")
	return ev, nil
}

// reconcile reloads the committed queue after the store rejected next.
// A timed out attempt may have committed next already, in which case it
// reports landed. Otherwise the room takes the stored state and subscribers
// get a FullSync. Must be called inside the room's write scope.
func (o *Orchestrator) reconcile(ctx context.Context, room *core.Room, next domain.QueueState) (landed bool, err error) {
	sid := room.ID()
	var stored domain.QueueState
	if err := o.storage(ctx, "read queue", func(ctx context.Context) (err error) {
		stored, err = o.Store.ReadQueue(ctx, sid)
		return err
	}); err != nil {
		return false, err
	}
	if stored.Sequence == next.Sequence && stored.StateHash == next.StateHash {
		log.Info().Str("module", "app.orch").Str("session_id", string(sid)).
			Uint64("sequence", stored.Sequence).Msg("earlier attempt committed the queue")
		return true, nil
	}

	room.SetState(stored)
	o.Log.Seed(sid, stored.Sequence)
	o.publish(sid, domain.Event{
		SessionID: sid,
		Sequence:  stored.Sequence,
		CreatedAt: o.now(),
		Payload:   domain.FullSync{State: stored.Clone()},
	})
	log.Warn().Str("module", "app.orch").Str("session_id", string(sid)).
		Uint64("sequence", stored.Sequence).Msg("live room resynced from store")
	return false, nil
}

// GetQueueState returns the committed queue of sid.
func (o *Orchestrator) GetQueueState(ctx context.Context, sid domain.SessionID) (domain.QueueState, error) {
	if err := domain.ValidateSessionID(sid); err != nil {
		return domain.QueueState{}, err
	}
	if room, ok := o.Rooms.Get(sid); ok && room.Loaded() && !room.Closed() {
		return room.State(), nil
	}
	var state domain.QueueState
	err := o.storage(ctx, "read queue", func(ctx context.Context) (err error) {
		state, err = o.Store.ReadQueue(ctx, sid)
		return err
	})
	return state, err
}

// EventsReplay returns the events after since. domain.ErrBufferExceeded
// means the caller has to take a full snapshot instead; CurrentSequence is
// still set in that case.
func (o *Orchestrator) EventsReplay(ctx context.Context, clientID domain.ClientID, sid domain.SessionID, since uint64) (ReplayResult, error) {
	if err := domain.ValidateSessionID(sid); err != nil {
		return ReplayResult{}, err
	}
	room, ok := o.Rooms.Get(sid)
	if !ok || o.Registry.SessionOf(clientID) != sid || !room.HasMember(clientID) {
		return ReplayResult{}, o.denied(clientID, sid, "events replay")
	}

	events, err := o.Log.Since(sid, since)
	if err != nil {
		return ReplayResult{CurrentSequence: room.State().Sequence}, err
	}
	res := ReplayResult{Events: events, CurrentSequence: since}
	if n := len(events); n > 0 {
		res.CurrentSequence = events[n-1].Sequence
	}
	return res, nil
}
