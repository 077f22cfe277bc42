package signal

import (
	"errors"
	"strings"

	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

type ackState struct {
	RoomName domain.RoomName `json:"roomName"`
	Playlist []domain.Track  `json:"playlist"`
	domain.Playback
}

type ack struct {
	Type       string          `json:"type"`
	RequestID  string          `json:"requestId,omitempty"`
	Success    bool            `json:"success"`
	State      *ackState       `json:"state,omitempty"`
	InviteCode domain.RoomCode `json:"inviteCode,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// handleCreateRoom mirrors POST /room/create for socket-only clients.
func (ctl *SignalWSController) handleCreateRoom(conn *WsSignalConn, data []byte) {
	var p struct {
		RequestID string `json:"requestId"`
		RoomTitle string `json:"roomTitle"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	code, err := ctl.Orch.Registry.Create(domain.RoomName(strings.TrimSpace(p.RoomTitle)))
	if err != nil {
		ctl.sendJSON(conn, ack{Type: "ack", RequestID: p.RequestID, Message: "no free room code"})
		return
	}
	ctl.sendJSON(conn, ack{Type: "ack", RequestID: p.RequestID, Success: true, InviteCode: code})
}

// handleJoinRoom only checks that the code resolves, like POST /room/join.
func (ctl *SignalWSController) handleJoinRoom(conn *WsSignalConn, data []byte) {
	var p struct {
		RequestID string `json:"requestId"`
		RoomCode  string `json:"roomCode"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	if _, ok := ctl.Orch.Registry.Get(domain.RoomCode(p.RoomCode)); !ok {
		ctl.sendJSON(conn, ack{Type: "ack", RequestID: p.RequestID, Message: "room not found"})
		return
	}
	ctl.sendJSON(conn, ack{Type: "ack", RequestID: p.RequestID, Success: true})
}

func (ctl *SignalWSController) handleConnectRoom(conn *WsSignalConn, data []byte) {
	var p struct {
		RequestID string `json:"requestId"`
		RoomCode  string `json:"roomCode"`
		UserName  string `json:"userName"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	code := domain.RoomCode(p.RoomCode)
	pb, _, err := ctl.Orch.Join(code, conn.sid, p.UserName)
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(conn.sid)).Str("room", p.RoomCode).Msg("join rejected")
		ctl.sendJSON(conn, ack{Type: "ack", RequestID: p.RequestID, Message: joinMessage(err)})
		return
	}
	st := &ackState{Playback: pb}
	if room, ok := ctl.Orch.Registry.Get(code); ok {
		st.RoomName = room.Name()
		st.Playlist = room.Playlist()
	}
	log.Info().Str("module", "signal").Str("sid", string(conn.sid)).Str("room", p.RoomCode).Msg("join")
	ctl.sendJSON(conn, ack{Type: "ack", RequestID: p.RequestID, Success: true, State: st})
}

func joinMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, domain.ErrDisplayNameEmpty):
		return "display name is empty"
	case errors.Is(err, domain.ErrDisplayNameTooLong):
		return "display name is too long"
	default:
		return "join failed"
	}
}

// handleLeaveRoom leaves the room; the connection stays open.
func (ctl *SignalWSController) handleLeaveRoom(conn *WsSignalConn, data []byte) {
	var p struct {
		RoomCode string `json:"roomCode"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(conn.sid)).Str("room", p.RoomCode).Msg("leave")
	ctl.Orch.Leave(domain.RoomCode(p.RoomCode), conn.sid)
}
