package signal

import (
	"github.com/dkeye/SyncRoom/internal/domain"
)

func (ctl *SignalWSController) handleAddTrack(conn *WsSignalConn, data []byte) {
	var p struct {
		Track map[string]any `json:"track"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	if p.Track == nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	ctl.Orch.AddTrack(conn.sid, p.Track)
}

func (ctl *SignalWSController) handleRemoveTrack(conn *WsSignalConn, data []byte) {
	var p struct {
		TrackID domain.TrackID `json:"trackId"`
	}
	if !ctl.decode(conn, data, &p) {
		return
	}
	ctl.Orch.RemoveTrack(conn.sid, p.TrackID)
}
