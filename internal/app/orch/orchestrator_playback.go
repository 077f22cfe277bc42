package orch

import (
	"fmt"

	"github.com/dkeye/SyncRoom/internal/core"
	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) room(code domain.RoomCode, sid core.SessionID, op string) (*core.Room, bool) {
	room, ok := o.Registry.Get(code)
	if !ok {
		log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(code)).Str("op", op).Msg("unknown room")
	}
	return room, ok
}

func (o *Orchestrator) TogglePlayPause(code domain.RoomCode, sid core.SessionID) []core.Notification {
	room, ok := o.room(code, sid, "toggle_play_pause")
	if !ok {
		return nil
	}
	return room.TogglePlayPause()
}

func (o *Orchestrator) SetEnded(code domain.RoomCode, sid core.SessionID, ended bool) []core.Notification {
	room, ok := o.room(code, sid, "set_ended")
	if !ok {
		return nil
	}
	return room.SetEnded(sid, ended)
}

func (o *Orchestrator) UpdateCurrentTime(code domain.RoomCode, sid core.SessionID, t float64) {
	if room, ok := o.room(code, sid, "update_current_time"); ok {
		room.UpdateCurrentTime(t)
	}
}

func (o *Orchestrator) Seek(code domain.RoomCode, sid core.SessionID, t float64) []core.Notification {
	room, ok := o.room(code, sid, "seek")
	if !ok {
		return nil
	}
	return room.Seek(t)
}

// ChangeRepeatMode rejects unknown modes; an unknown room is not an error.
func (o *Orchestrator) ChangeRepeatMode(code domain.RoomCode, sid core.SessionID, mode string) ([]core.Notification, error) {
	m, err := domain.ParseRepeatMode(mode)
	if err != nil {
		return nil, err
	}
	room, ok := o.room(code, sid, "change_repeat_mode")
	if !ok {
		return nil, nil
	}
	return room.SetRepeatMode(m), nil
}

func (o *Orchestrator) PlayAt(code domain.RoomCode, sid core.SessionID, index int, t float64) ([]core.Notification, error) {
	room, ok := o.room(code, sid, "play_at")
	if !ok {
		return nil, nil
	}
	notes, err := room.PlayAt(index, t)
	if err != nil {
		return nil, fmt.Errorf("play_at %d: %w", index, err)
	}
	return notes, nil
}

// RequestSync sends the playback snapshot to the sender only.
func (o *Orchestrator) RequestSync(code domain.RoomCode, sid core.SessionID) (domain.Playback, bool) {
	room, ok := o.room(code, sid, "request_sync")
	if !ok {
		return domain.Playback{}, false
	}
	pb, _ := room.Sync(sid)
	return pb, true
}
