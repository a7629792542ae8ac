package signal

import (
	"context"
	"errors"

	"github.com/dkeye/seshd/internal/domain"
	"github.com/rs/zerolog/log"
)

type mutatePayload struct {
	SessionID domain.SessionID `json:"sessionId"`
	domain.Mutation
}

type ackFrame struct {
	header
	SessionID     domain.SessionID `json:"sessionId"`
	Sequence      uint64           `json:"sequence"`
	StateHash     string           `json:"stateHash"`
	CorrelationID string           `json:"correlationId,omitempty"`
}

func (ctl *SignalWSController) handleMutate(ctx context.Context, cl *client, env header, data []byte) {
	if !ctl.allow(ctl.Mutations, cl, env) {
		return
	}
	var p mutatePayload
	if !ctl.decode(cl, env, data, &p) {
		return
	}
	ev, err := ctl.Orch.MutateQueue(ctx, cl.id, p.SessionID, p.Mutation)
	if err != nil {
		ctl.sendError(cl, env.RequestID, err)
		return
	}
	delta, _ := ev.Payload.(domain.Delta)
	ctl.sendJSON(cl.conn, ackFrame{
		header:        header{Type: "ack", RequestID: env.RequestID},
		SessionID:     p.SessionID,
		Sequence:      ev.Sequence,
		StateHash:     delta.StateHash,
		CorrelationID: delta.CorrelationID,
	})
}

type stateFrame struct {
	header
	SessionID domain.SessionID  `json:"sessionId"`
	State     domain.QueueState `json:"state"`
}

func (ctl *SignalWSController) handleGetState(ctx context.Context, cl *client, env header, data []byte) {
	var p sessionPayload
	if !ctl.decode(cl, env, data, &p) {
		return
	}
	state, err := ctl.Orch.GetQueueState(ctx, p.SessionID)
	if err != nil {
		ctl.sendError(cl, env.RequestID, err)
		return
	}
	ctl.sendJSON(cl.conn, stateFrame{header: header{Type: "state", RequestID: env.RequestID}, SessionID: p.SessionID, State: state})
}

type eventFrame struct {
	header
	Event domain.Event `json:"event"`
}

// handleSubscribe starts streaming the session's events. Subscribing again
// restarts the stream with a fresh FullSync.
func (ctl *SignalWSController) handleSubscribe(ctx context.Context, cl *client, env header, data []byte) {
	var p sessionPayload
	if !ctl.decode(cl, env, data, &p) {
		return
	}
	sid := p.SessionID
	cl.dropSub(sid)

	send := func(ev domain.Event) error {
		if err := ctl.trySendJSON(cl.conn, eventFrame{header: header{Type: "event"}, Event: ev}); err != nil {
			return err
		}
		if m, ok := ev.Payload.(domain.Membership); ok && m.Kind == domain.SessionEnded {
			cl.dropSub(sid)
		}
		return nil
	}
	unsubscribe, err := ctl.Orch.SubscribeQueue(ctx, cl.id, sid, send)
	if err != nil {
		ctl.sendError(cl, env.RequestID, err)
		return
	}
	cl.setSub(sid, unsubscribe)
	ctl.sendJSON(cl.conn, sessionFrame{header: header{Type: "subscribed", RequestID: env.RequestID}, SessionID: sid})
}

func (ctl *SignalWSController) handleUnsubscribe(cl *client, env header, data []byte) {
	var p sessionPayload
	if !ctl.decode(cl, env, data, &p) {
		return
	}
	cl.dropSub(p.SessionID)
	ctl.sendJSON(cl.conn, sessionFrame{header: header{Type: "unsubscribed", RequestID: env.RequestID}, SessionID: p.SessionID})
}

type replayPayload struct {
	SessionID domain.SessionID `json:"sessionId"`
	Since     uint64           `json:"since"`
}

type replayFrame struct {
	header
	SessionID       domain.SessionID   `json:"sessionId"`
	Events          []domain.Event     `json:"events"`
	CurrentSequence uint64             `json:"currentSequence"`
	FullSync        bool               `json:"fullSync,omitempty"`
	State           *domain.QueueState `json:"state,omitempty"`
}

// handleReplay answers with the missed events, or with the whole state when
// the log no longer reaches back far enough.
func (ctl *SignalWSController) handleReplay(ctx context.Context, cl *client, env header, data []byte) {
	var p replayPayload
	if !ctl.decode(cl, env, data, &p) {
		return
	}
	resp := replayFrame{header: header{Type: "replay", RequestID: env.RequestID}, SessionID: p.SessionID}

	res, err := ctl.Orch.EventsReplay(ctx, cl.id, p.SessionID, p.Since)
	switch {
	case err == nil:
		resp.Events = res.Events
		if resp.Events == nil {
			resp.Events = []domain.Event{}
		}
		resp.CurrentSequence = res.CurrentSequence
	case errors.Is(err, domain.ErrBufferExceeded):
		state, err := ctl.Orch.GetQueueState(ctx, p.SessionID)
		if err != nil {
			ctl.sendError(cl, env.RequestID, err)
			return
		}
		log.Info().Str("module", "signal").Str("client_id", string(cl.id)).Str("session_id", string(p.SessionID)).
			Uint64("since", p.Since).Msg("replay fell back to full state")
		resp.Events = []domain.Event{}
		resp.CurrentSequence = state.Sequence
		resp.FullSync = true
		resp.State = &state
	default:
		ctl.sendError(cl, env.RequestID, err)
		return
	}
	ctl.sendJSON(cl.conn, resp)
}
