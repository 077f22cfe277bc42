package orch

import (
	"github.com/dkeye/SyncRoom/internal/core"
	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

// AddTrack appends meta to the sender's room. Dropped when sid is in no room.
func (o *Orchestrator) AddTrack(sid core.SessionID, meta map[string]any) []core.Notification {
	room, ok := o.Registry.RoomOf(sid)
	if !ok {
		log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Msg("add_track from session without room")
		return nil
	}
	notes, _ := room.AddTrack(sid, meta)
	return notes
}

func (o *Orchestrator) RemoveTrack(sid core.SessionID, id domain.TrackID) []core.Notification {
	room, ok := o.Registry.RoomOf(sid)
	if !ok {
		log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Msg("remove_track from session without room")
		return nil
	}
	notes, _ := room.RemoveTrack(sid, id)
	return notes
}
