package app

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/SyncRoom/internal/core"
	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

const maxCodeAttempts = 64

var ErrCodeSpaceExhausted = errors.New("no free room code")

type RegistryOptions struct {
	Codes     CodeGenerator
	Notifier  core.Notifier
	// JoinGrace keeps a room nobody has joined yet alive until its creator connects.
	JoinGrace time.Duration
	// Pinned is never swept.
	Pinned domain.RoomCode
	Now    func() time.Time
}

// Registry owns every live room and the session -> room index.
//
// Lock order: rooms.mu is never held while a room lock is taken, and
// sessMu is a leaf.
type Registry struct {
	codes    CodeGenerator
	notifier core.Notifier
	grace    time.Duration
	pinned   domain.RoomCode
	now      func() time.Time

	mu    sync.RWMutex
	rooms map[domain.RoomCode]*core.Room

	sessMu   sync.Mutex
	sessions map[core.SessionID]domain.RoomCode

	trackSeq atomic.Int64
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Codes == nil {
		opts.Codes = RandomCodes{}
	}
	if opts.JoinGrace < 0 {
		opts.JoinGrace = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		codes:    opts.Codes,
		notifier: opts.Notifier,
		grace:    opts.JoinGrace,
		pinned:   opts.Pinned,
		now:      opts.Now,
		rooms:    make(map[domain.RoomCode]*core.Room),
		sessions: make(map[core.SessionID]domain.RoomCode),
	}
}

// NextTrackID hands out process-wide track ids; they are never reused.
func (r *Registry) NextTrackID() domain.TrackID {
	return domain.TrackID(r.trackSeq.Add(1))
}

func (r *Registry) roomOptions() core.RoomOptions {
	return core.RoomOptions{
		NextTrackID: r.NextTrackID,
		Notifier:    r.notifier,
		Now:         r.now,
	}
}

// Create registers an empty room under a fresh invite code.
func (r *Registry) Create(name domain.RoomName) (domain.RoomCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for range maxCodeAttempts {
		code := domain.RoomCode(r.codes.Generate())
		if code == "" {
			continue
		}
		if _, taken := r.rooms[code]; taken {
			continue
		}
		r.rooms[code] = core.NewRoom(code, name, r.roomOptions())
		log.Info().Str("module", "app.registry").Str("room", string(code)).Str("name", string(name)).Msg("room created")
		return code, nil
	}
	log.Error().Str("module", "app.registry").Int("attempts", maxCodeAttempts).Msg("code space exhausted")
	return "", ErrCodeSpaceExhausted
}

// EnsurePinned creates the pinned room if it does not exist yet.
func (r *Registry) EnsurePinned(code domain.RoomCode, name domain.RoomName) *core.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pinned = code
	if room, ok := r.rooms[code]; ok {
		return room
	}
	room := core.NewRoom(code, name, r.roomOptions())
	r.rooms[code] = room
	log.Info().Str("module", "app.registry").Str("room", string(code)).Msg("pinned room ready")
	return room
}

func (r *Registry) Get(code domain.RoomCode) (*core.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	return room, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) BindSession(sid core.SessionID, code domain.RoomCode) {
	r.sessMu.Lock()
	defer r.sessMu.Unlock()
	r.sessions[sid] = code
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(code)).Msg("bound session")
}

// UnbindSession drops the index entry only if it still points at code.
func (r *Registry) UnbindSession(sid core.SessionID, code domain.RoomCode) {
	r.sessMu.Lock()
	defer r.sessMu.Unlock()
	if cur, ok := r.sessions[sid]; ok && cur == code {
		delete(r.sessions, sid)
		log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(code)).Msg("unbind session")
	}
}

func (r *Registry) CodeOf(sid core.SessionID) (domain.RoomCode, bool) {
	r.sessMu.Lock()
	defer r.sessMu.Unlock()
	code, ok := r.sessions[sid]
	return code, ok
}

// RoomOf resolves the room a session is currently a member of.
func (r *Registry) RoomOf(sid core.SessionID) (*core.Room, bool) {
	code, ok := r.CodeOf(sid)
	if !ok {
		return nil, false
	}
	return r.Get(code)
}

// SweepEmpty removes every empty room except the pinned one. Candidates are
// collected first, then each is closed under its own lock and removed.
func (r *Registry) SweepEmpty() []domain.RoomCode {
	r.mu.RLock()
	candidates := make([]*core.Room, 0, len(r.rooms))
	for code, room := range r.rooms {
		if code != r.pinned {
			candidates = append(candidates, room)
		}
	}
	r.mu.RUnlock()

	now := r.now()
	var removed []domain.RoomCode
	for _, room := range candidates {
		if !room.CloseIfEmpty(r.grace, now) {
			continue
		}
		r.mu.Lock()
		if cur, ok := r.rooms[room.Code()]; ok && cur == room {
			delete(r.rooms, room.Code())
			removed = append(removed, room.Code())
		}
		r.mu.Unlock()
	}
	if len(removed) > 0 {
		slices.Sort(removed)
		log.Info().Str("module", "app.registry").Int("count", len(removed)).Strs("rooms", codesToStrings(removed)).Msg("swept empty rooms")
	}
	return removed
}

func (r *Registry) all() []*core.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

// Snapshot copies the state of every room. Room locks are taken one at a time.
func (r *Registry) Snapshot() map[domain.RoomCode]domain.RoomState {
	rooms := r.all()
	out := make(map[domain.RoomCode]domain.RoomState, len(rooms))
	for _, room := range rooms {
		out[room.Code()] = room.State()
	}
	return out
}

// Restore loads rooms from a snapshot without members. Existing codes are
// left untouched. The track counter is raised past every restored id.
func (r *Registry) Restore(states map[domain.RoomCode]domain.RoomState) int {
	var maxID domain.TrackID
	restored := 0
	r.mu.Lock()
	for code, st := range states {
		for _, t := range st.Playlist {
			maxID = max(maxID, t.ID)
		}
		if code == "" {
			continue
		}
		if _, ok := r.rooms[code]; ok {
			continue
		}
		r.rooms[code] = core.RestoreRoom(code, st, r.roomOptions())
		restored++
	}
	r.mu.Unlock()

	for {
		cur := r.trackSeq.Load()
		if int64(maxID) <= cur || r.trackSeq.CompareAndSwap(cur, int64(maxID)) {
			break
		}
	}
	log.Info().Str("module", "app.registry").Int("rooms", restored).Int64("track_seq", r.trackSeq.Load()).Msg("restored snapshot")
	return restored
}

type RoomInfo struct {
	Code        domain.RoomCode `json:"code"`
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"memberCount"`
	TrackCount  int             `json:"trackCount"`
}

func (r *Registry) List() []RoomInfo {
	rooms := r.all()
	out := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		st := room.State()
		out = append(out, RoomInfo{
			Code:        room.Code(),
			Name:        st.Name,
			MemberCount: len(st.Members),
			TrackCount:  len(st.Playlist),
		})
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return cmp.Compare(a.Code, b.Code) })
	return out
}

func codesToStrings(codes []domain.RoomCode) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}
