package core

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Room is the authoritative state of one room. Every mutation runs under the
// room mutex and hands its notifications to the notifier before the lock is
// released, so members observe events in mutation order.
type Room struct {
	code      domain.RoomCode
	name      domain.RoomName
	createdAt time.Time
	nextID    func() domain.TrackID
	notifier  Notifier

	mu       sync.Mutex
	closed   bool
	joined   bool
	members  []domain.Member
	playlist []domain.Track
	pb       domain.Playback
}

type RoomOptions struct {
	// NextTrackID hands out track ids; shared by every room of a registry.
	NextTrackID func() domain.TrackID
	Notifier    Notifier
	Now         func() time.Time
}

func NewRoom(code domain.RoomCode, name domain.RoomName, opts RoomOptions) *Room {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	nextID := opts.NextTrackID
	if nextID == nil {
		var seq domain.TrackID
		nextID = func() domain.TrackID { seq++; return seq }
	}
	return &Room{
		code:      code,
		name:      name,
		createdAt: now(),
		nextID:    nextID,
		notifier:  opts.Notifier,
		pb:        domain.DefaultPlayback(),
	}
}

// RestoreRoom rebuilds a room from a snapshot. Members are not restored.
func RestoreRoom(code domain.RoomCode, st domain.RoomState, opts RoomOptions) *Room {
	r := NewRoom(code, st.Name, opts)
	r.playlist = slices.Clone(st.Playlist)
	r.pb = st.Playback
	if r.pb.RepeatMode == "" {
		r.pb.RepeatMode = domain.RepeatNone
	}
	r.normalizeIndex()
	return r
}

func (r *Room) Code() domain.RoomCode { return r.code }
func (r *Room) Name() domain.RoomName { return r.name }

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) Members() []domain.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.members)
}

func (r *Room) Playlist() []domain.Track {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.playlist)
}

func (r *Room) Playback() domain.Playback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pb
}

func (r *Room) State() domain.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RoomState{
		Name:     r.name,
		Members:  slices.Clone(r.members),
		Playlist: slices.Clone(r.playlist),
		Playback: r.pb,
	}
}

// CloseIfEmpty marks an empty room as closed so no later join can resurrect
// it. Rooms nobody has joined yet are kept until grace has passed.
func (r *Room) CloseIfEmpty(grace time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	if len(r.members) > 0 {
		return false
	}
	if !r.joined && now.Sub(r.createdAt) < grace {
		return false
	}
	r.closed = true
	return true
}

// AddMember joins m to the room. Joining twice with the same session is a
// no-op apart from returning the playback snapshot again.
func (r *Room) AddMember(m domain.Member) (domain.Playback, []Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.Playback{}, nil, domain.ErrRoomNotFound
	}
	if r.memberIndex(SessionID(m.ID)) >= 0 {
		return r.pb, nil, nil
	}
	r.members = append(r.members, m)
	r.joined = true
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("sid", m.ID).Str("name", m.Name).Msg("member added")
	return r.pb, r.emit(r.membersChangedLocked()), nil
}

func (r *Room) RemoveMember(sid SessionID) ([]Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.memberIndex(sid)
	if i < 0 {
		return nil, false
	}
	r.members = slices.Delete(r.members, i, i+1)
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("sid", string(sid)).Msg("member removed")
	return r.emit(r.membersChangedLocked()), true
}

// AddTrack appends a track on behalf of sid. It reports false when sid is
// not a member of this room.
func (r *Room) AddTrack(sid SessionID, meta map[string]any) ([]Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.memberIndex(sid)
	if i < 0 || r.closed {
		return nil, false
	}
	tr := domain.Track{
		ID:      r.nextID(),
		AddedBy: r.members[i].Name,
		Meta:    domain.CleanMeta(meta),
	}
	r.playlist = append(r.playlist, tr)
	notes := []Notification{r.toAll(EventPlaylistChanged, PlaylistChanged{Playlist: slices.Clone(r.playlist)})}

	// Playback had run off the end: the new track is what plays next.
	if r.pb.IsEnded {
		r.pb.CurrentIndex = len(r.playlist) - 1
		r.pb.CurrentTime = 0
		r.pb.IsEnded = false
		notes = append(notes,
			r.toAll(EventEndedChanged, EndedChanged{IsEnded: false}),
			r.playAtLocked(),
		)
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.code)).Int64("track", int64(tr.ID)).Msg("track added")
	return r.emit(notes...), true
}

// RemoveTrack splices a track out and re-derives the playback cursor. It
// reports false when sid is not a member or the track does not exist.
func (r *Room) RemoveTrack(sid SessionID, id domain.TrackID) ([]Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.memberIndex(sid) < 0 || r.closed {
		return nil, false
	}
	pos := slices.IndexFunc(r.playlist, func(t domain.Track) bool { return t.ID == id })
	if pos < 0 {
		return nil, false
	}
	r.playlist = slices.Delete(r.playlist, pos, pos+1)
	notes := []Notification{r.toAll(EventPlaylistChanged, PlaylistChanged{Playlist: slices.Clone(r.playlist)})}

	cur := r.pb.CurrentIndex
	switch {
	case pos < cur:
		r.pb.CurrentIndex--
		notes = append(notes, r.toAll(EventIndexChanged, IndexChanged{Index: r.pb.CurrentIndex}))
	case pos == cur && len(r.playlist) == 0:
		r.pb.CurrentIndex = 0
		r.pb.CurrentTime = 0
		r.pb.IsEnded = true
		notes = append(notes,
			r.toAll(EventIndexChanged, IndexChanged{Index: 0}),
			r.toAll(EventEndedChanged, EndedChanged{IsEnded: true}),
		)
	case pos == cur:
		if pos >= len(r.playlist) {
			r.pb.CurrentIndex = len(r.playlist) - 1
		}
		r.pb.CurrentTime = 0
		notes = append(notes, r.playAtLocked())
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.code)).Int64("track", int64(id)).Int("index", r.pb.CurrentIndex).Msg("track removed")
	return r.emit(notes...), true
}

func (r *Room) TogglePlayPause() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pb.IsPlaying = !r.pb.IsPlaying
	return r.emit(r.toAll(EventPlayPauseChanged, PlayPauseChanged{IsPlaying: r.pb.IsPlaying}))
}

// SetEnded skips the sender, which already knows.
func (r *Room) SetEnded(sender SessionID, ended bool) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pb.IsEnded = ended
	return r.emit(Notification{
		Room:       r.code,
		Recipients: r.allExceptLocked(sender),
		Event:      Event{Type: EventEndedChanged, Payload: EndedChanged{IsEnded: ended}},
	})
}

// UpdateCurrentTime is the passive heartbeat; nothing is broadcast.
func (r *Room) UpdateCurrentTime(t float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pb.CurrentTime = clampTime(t)
}

func (r *Room) Seek(t float64) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emit(r.toAll(EventSeeked, Seeked{Time: clampTime(t)}))
}

func (r *Room) SetRepeatMode(mode domain.RepeatMode) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pb.RepeatMode = mode
	return r.emit(r.toAll(EventRepeatModeChanged, RepeatModeChanged{Mode: mode}))
}

func (r *Room) PlayAt(index int, t float64) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || (index > 0 && index >= len(r.playlist)) {
		return nil, domain.ErrIndexOutOfRange
	}
	r.pb.CurrentIndex = index
	r.pb.CurrentTime = clampTime(t)
	return r.emit(r.playAtLocked()), nil
}

// Sync answers the sender only.
func (r *Room) Sync(sender SessionID) (domain.Playback, []Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pb, r.emit(Notification{
		Room:       r.code,
		Recipients: []SessionID{sender},
		Event:      Event{Type: EventSyncSnapshot, Payload: r.pb},
	})
}

func (r *Room) emit(notes ...Notification) []Notification {
	if r.notifier != nil {
		for _, n := range notes {
			r.notifier.Notify(n)
		}
	}
	return notes
}

func (r *Room) memberIndex(sid SessionID) int {
	return slices.IndexFunc(r.members, func(m domain.Member) bool { return m.ID == string(sid) })
}

func (r *Room) allLocked() []SessionID {
	out := make([]SessionID, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, SessionID(m.ID))
	}
	return out
}

func (r *Room) allExceptLocked(sid SessionID) []SessionID {
	out := make([]SessionID, 0, len(r.members))
	for _, m := range r.members {
		if SessionID(m.ID) != sid {
			out = append(out, SessionID(m.ID))
		}
	}
	return out
}

func (r *Room) toAll(typ string, payload any) Notification {
	return Notification{
		Room:       r.code,
		Recipients: r.allLocked(),
		Event:      Event{Type: typ, Payload: payload},
	}
}

func (r *Room) membersChangedLocked() Notification {
	names := make([]string, 0, len(r.members))
	for _, m := range r.members {
		names = append(names, m.Name)
	}
	return r.toAll(EventMembersChanged, MembersChanged{Members: names})
}

func (r *Room) playAtLocked() Notification {
	return r.toAll(EventPlayAt, PlayAt{
		Index:    r.pb.CurrentIndex,
		Time:     r.pb.CurrentTime,
		Playlist: slices.Clone(r.playlist),
	})
}

func (r *Room) normalizeIndex() {
	switch {
	case len(r.playlist) == 0:
		r.pb.CurrentIndex = 0
	case r.pb.CurrentIndex < 0:
		r.pb.CurrentIndex = 0
	case r.pb.CurrentIndex >= len(r.playlist):
		r.pb.CurrentIndex = len(r.playlist) - 1
	}
}

func clampTime(t float64) float64 {
	if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0
	}
	return t
}
