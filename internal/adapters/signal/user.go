package signal

import (
	"github.com/dkeye/SyncRoom/internal/domain"
)

func (ctl *SignalWSController) handleWhoAmI(conn *WsSignalConn) {
	resp := struct {
		Type      string          `json:"type"`
		SessionID string          `json:"sessionId"`
		Name      string          `json:"name,omitempty"`
		Room      domain.RoomCode `json:"roomCode,omitempty"`
		RoomName  domain.RoomName `json:"roomName,omitempty"`
	}{
		Type:      "whoami",
		SessionID: string(conn.sid),
	}
	if room, ok := ctl.Orch.Registry.RoomOf(conn.sid); ok {
		resp.Room = room.Code()
		resp.RoomName = room.Name()
		for _, m := range room.Members() {
			if m.ID == string(conn.sid) {
				resp.Name = m.Name
				break
			}
		}
	}
	ctl.sendJSON(conn, resp)
}
