package orch

import (
	"fmt"

	"github.com/dkeye/SyncRoom/internal/core"
	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join adds sid to the room behind code and returns the playback snapshot.
// A session in another room is removed from it once the new room has
// accepted it; a failed join leaves the old membership alone.
func (o *Orchestrator) Join(code domain.RoomCode, sid core.SessionID, displayName string) (domain.Playback, []core.Notification, error) {
	member, err := domain.NewMember(string(sid), displayName)
	if err != nil {
		return domain.Playback{}, nil, fmt.Errorf("join %s: %w", code, err)
	}
	room, ok := o.Registry.Get(code)
	if !ok {
		return domain.Playback{}, nil, fmt.Errorf("join %s: %w", code, domain.ErrRoomNotFound)
	}

	pb, notes, err := room.AddMember(member)
	if err != nil {
		return domain.Playback{}, nil, fmt.Errorf("join %s: %w", code, err)
	}
	prev, hadPrev := o.Registry.CodeOf(sid)
	o.Registry.BindSession(sid, code)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(code)).Msg("added to room")

	if hadPrev && prev != code {
		left, _ := o.Leave(prev, sid)
		notes = append(notes, left...)
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(prev)).Msg("kicked from room")
	}
	return pb, notes, nil
}

// Leave removes sid from the room behind code and sweeps empty rooms. It
// reports whether membership changed.
func (o *Orchestrator) Leave(code domain.RoomCode, sid core.SessionID) ([]core.Notification, bool) {
	var (
		notes   []core.Notification
		removed bool
	)
	if room, ok := o.Registry.Get(code); ok {
		notes, removed = room.RemoveMember(sid)
	}
	o.Registry.UnbindSession(sid, code)
	o.Registry.SweepEmpty()
	if removed {
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(code)).Msg("left room")
	}
	return notes, removed
}

// Disconnect is Leave for whatever room the session is in.
func (o *Orchestrator) Disconnect(sid core.SessionID) []core.Notification {
	code, ok := o.Registry.CodeOf(sid)
	if !ok {
		return nil
	}
	notes, _ := o.Leave(code, sid)
	return notes
}
