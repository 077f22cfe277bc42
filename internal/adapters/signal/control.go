package signal

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) sendError(conn *WsSignalConn, reason string) {
	ctl.sendJSON(conn, map[string]any{
		"type":  "error",
		"error": reason,
	})
}
