package signal

import (
	"errors"

	"github.com/dkeye/SyncRoom/internal/domain"
)

type roomPayload struct {
	RoomCode domain.RoomCode `json:"roomCode"`
}

func (ctl *SignalWSController) handleTogglePlayPause(conn *WsSignalConn, data []byte) {
	var p roomPayload
	if ctl.decode(conn, data, &p) {
		ctl.Orch.TogglePlayPause(p.RoomCode, conn.sid)
	}
}

func (ctl *SignalWSController) handleSetEnded(conn *WsSignalConn, data []byte) {
	var p struct {
		roomPayload
		IsEnded bool `json:"isEnded"`
	}
	if ctl.decode(conn, data, &p) {
		ctl.Orch.SetEnded(p.RoomCode, conn.sid, p.IsEnded)
	}
}

func (ctl *SignalWSController) handleUpdateCurrentTime(conn *WsSignalConn, data []byte) {
	var p struct {
		roomPayload
		Time float64 `json:"time"`
	}
	if ctl.decode(conn, data, &p) {
		ctl.Orch.UpdateCurrentTime(p.RoomCode, conn.sid, p.Time)
	}
}

func (ctl *SignalWSController) handleSeek(conn *WsSignalConn, data []byte) {
	var p struct {
		roomPayload
		Time float64 `json:"time"`
	}
	if ctl.decode(conn, data, &p) {
		ctl.Orch.Seek(p.RoomCode, conn.sid, p.Time)
	}
}

func (ctl *SignalWSController) handleChangeRepeatMode(conn *WsSignalConn, data []byte) {
	var p struct {
		roomPayload
		Mode string `json:"mode"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	if _, err := ctl.Orch.ChangeRepeatMode(p.RoomCode, conn.sid, p.Mode); errors.Is(err, domain.ErrInvalidRepeatMode) {
		ctl.sendError(conn, "invalid_repeat_mode")
	}
}

func (ctl *SignalWSController) handlePlayAt(conn *WsSignalConn, data []byte) {
	var p struct {
		roomPayload
		Index int     `json:"index"`
		Time  float64 `json:"time"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	if _, err := ctl.Orch.PlayAt(p.RoomCode, conn.sid, p.Index, p.Time); errors.Is(err, domain.ErrIndexOutOfRange) {
		ctl.sendError(conn, "index_out_of_range")
	}
}

// handleRequestSync relies on the room to push sync_snapshot to the sender.
func (ctl *SignalWSController) handleRequestSync(conn *WsSignalConn, data []byte) {
	var p roomPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	if _, ok := ctl.Orch.RequestSync(p.RoomCode, conn.sid); !ok {
		ctl.sendError(conn, "room_not_found")
	}
}
