package signal

func (ctl *SignalWSController) handlePing(cl *client, env header) {
	ctl.sendJSON(cl.conn, header{Type: "pong", RequestID: env.RequestID})
}
