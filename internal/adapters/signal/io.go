package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/seshd/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const disconnectTimeout = 5 * time.Second

// header starts every frame in both directions.
type header struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
}

type errorFrame struct {
	header
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			c.Close()
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				c.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, cl *client) {
	defer func() {
		log.Info().Str("module", "signal").Str("client_id", string(cl.id)).Msg("readPump closing")
		cancel()
		cl.dropSubsExcept("")
		dctx, dcancel := context.WithTimeout(context.Background(), disconnectTimeout)
		ctl.Orch.Disconnect(dctx, cl.id)
		dcancel()
		for _, rl := range []*RateLimiter{ctl.Mutations, ctl.Joins} {
			if rl != nil {
				rl.Forget(cl.id)
			}
		}
		cl.conn.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	_ = cl.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.conn.SetPongHandler(func(string) error {
		return cl.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cl.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("client_id", string(cl.id)).Msg("readPump read error")
			}
			return
		}
		_ = cl.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleSignal(ctx, cl, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, cl *client, data []byte) {
	var env header
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("client_id", string(cl.id)).Msg("bad json")
		ctl.sendError(cl, "", domain.Validation("malformed message"))
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(ctx, cl, env, data)
	case "leave":
		ctl.handleLeave(ctx, cl, env)
	case "end_session":
		ctl.handleEndSession(ctx, cl, env, data)
	case "rename":
		ctl.handleRename(ctx, cl, env, data)
	case "whoami":
		ctl.handleWhoAmI(cl, env)
	case "mutate":
		ctl.handleMutate(ctx, cl, env, data)
	case "get_state":
		ctl.handleGetState(ctx, cl, env, data)
	case "subscribe":
		ctl.handleSubscribe(ctx, cl, env, data)
	case "unsubscribe":
		ctl.handleUnsubscribe(cl, env, data)
	case "replay":
		ctl.handleReplay(ctx, cl, env, data)
	case "ping":
		ctl.handlePing(cl, env)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(cl, env.RequestID, domain.Validation("unknown message type %q", env.Type))
	}
}

// decode unmarshals data into v and reports a validation error on failure.
func (ctl *SignalWSController) decode(cl *client, env header, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", env.Type).Msg("bad payload")
		ctl.sendError(cl, env.RequestID, domain.Validation("bad %s payload", env.Type))
		return false
	}
	return true
}

func (ctl *SignalWSController) allow(rl *RateLimiter, cl *client, env header) bool {
	if rl == nil || rl.Allow(cl.id) {
		return true
	}
	log.Warn().Str("module", "signal").Str("client_id", string(cl.id)).Str("type", env.Type).Msg("rate limited")
	ctl.sendJSON(cl.conn, errorFrame{
		header: header{Type: "error", RequestID: env.RequestID},
		Code:   "rate_limited",
		Error:  "too many requests, slow down",
	})
	return false
}

func (ctl *SignalWSController) sendError(cl *client, requestID string, err error) {
	code, msg := domain.Public(err)
	if code == domain.KindInternal.String() {
		log.Error().Err(err).Str("module", "signal").Str("client_id", string(cl.id)).Msg("request failed")
	}
	ctl.sendJSON(cl.conn, errorFrame{
		header: header{Type: "error", RequestID: requestID},
		Code:   code,
		Error:  msg,
	})
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	if err := ctl.trySendJSON(c, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("sendJSON")
	}
}

func (ctl *SignalWSController) trySendJSON(c *WsSignalConn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.TrySend(b)
}
