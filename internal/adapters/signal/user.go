package signal

import (
	"context"

	"github.com/dkeye/seshd/internal/domain"
)

type renamePayload struct {
	Username string `json:"username"`
}

func (ctl *SignalWSController) handleRename(ctx context.Context, cl *client, env header, data []byte) {
	var p renamePayload
	if !ctl.decode(cl, env, data, &p) {
		return
	}
	if _, err := ctl.Orch.UpdateUsername(ctx, cl.id, p.Username); err != nil {
		ctl.sendError(cl, env.RequestID, err)
		return
	}
	ctl.handleWhoAmI(cl, env)
}

type whoamiFrame struct {
	header
	ClientID  domain.ClientID  `json:"clientId"`
	UserID    domain.UserID    `json:"userId,omitempty"`
	Username  string           `json:"username"`
	SessionID domain.SessionID `json:"sessionId,omitempty"`
}

func (ctl *SignalWSController) handleWhoAmI(cl *client, env header) {
	c, ok := ctl.Orch.Registry.Client(cl.id)
	if !ok {
		ctl.sendError(cl, env.RequestID, domain.NotFound("client %s not registered", cl.id))
		return
	}
	ctl.sendJSON(cl.conn, whoamiFrame{
		header:    header{Type: "whoami", RequestID: env.RequestID},
		ClientID:  c.ID,
		UserID:    c.UserID,
		Username:  c.Username,
		SessionID: ctl.Orch.Registry.SessionOf(cl.id),
	})
}
