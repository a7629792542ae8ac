package signal

import (
	"context"

	"github.com/dkeye/seshd/internal/app/orch"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/rs/zerolog/log"
)

type joinPayload struct {
	SessionID      domain.SessionID   `json:"sessionId"`
	BoardPath      string             `json:"boardPath"`
	Username       string             `json:"username,omitempty"`
	SessionName    string             `json:"sessionName,omitempty"`
	InitialQueue   []domain.QueueItem `json:"initialQueue,omitempty"`
	InitialCurrent *domain.QueueItem  `json:"initialCurrentClimbQueueItem,omitempty"`
}

type joinedFrame struct {
	header
	Session orch.JoinResult `json:"session"`
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, cl *client, env header, data []byte) {
	if !ctl.allow(ctl.Joins, cl, env) {
		return
	}
	var p joinPayload
	if !ctl.decode(cl, env, data, &p) {
		return
	}

	res, err := ctl.Orch.JoinSession(ctx, cl.id, orch.JoinRequest{
		SessionID:      p.SessionID,
		BoardPath:      p.BoardPath,
		Username:       p.Username,
		SessionName:    p.SessionName,
		InitialQueue:   p.InitialQueue,
		InitialCurrent: p.InitialCurrent,
	})
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("client_id", string(cl.id)).Str("session_id", string(p.SessionID)).Msg("join rejected")
		// Streams only survive for the session the client still belongs to.
		cl.dropSubsExcept(ctl.Orch.Registry.SessionOf(cl.id))
		ctl.sendError(cl, env.RequestID, err)
		return
	}
	if res.SessionSwitched {
		cl.dropSubsExcept(res.SessionID)
	}
	ctl.sendJSON(cl.conn, joinedFrame{header: header{Type: "joined", RequestID: env.RequestID}, Session: res})
}

type sessionFrame struct {
	header
	SessionID domain.SessionID `json:"sessionId,omitempty"`
}

// handleLeave leaves the current session; the connection stays open.
func (ctl *SignalWSController) handleLeave(ctx context.Context, cl *client, env header) {
	cl.dropSubsExcept("")
	res, err := ctl.Orch.LeaveSession(ctx, cl.id)
	if err != nil {
		ctl.sendError(cl, env.RequestID, err)
		return
	}
	resp := sessionFrame{header: header{Type: "left", RequestID: env.RequestID}}
	if res != nil {
		resp.SessionID = res.SessionID
	}
	ctl.sendJSON(cl.conn, resp)
}

type sessionPayload struct {
	SessionID domain.SessionID `json:"sessionId"`
}

func (ctl *SignalWSController) handleEndSession(ctx context.Context, cl *client, env header, data []byte) {
	var p sessionPayload
	if !ctl.decode(cl, env, data, &p) {
		return
	}
	if err := ctl.Orch.EndSession(ctx, cl.id, p.SessionID); err != nil {
		ctl.sendError(cl, env.RequestID, err)
		return
	}
	cl.dropSub(p.SessionID)
	ctl.sendJSON(cl.conn, sessionFrame{header: header{Type: "ended", RequestID: env.RequestID}, SessionID: p.SessionID})
}
