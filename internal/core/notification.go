package core

import (
	"encoding/json"

	"github.com/dkeye/SyncRoom/internal/domain"
)

// Frame is a raw payload handed to a transport endpoint.
type Frame []byte

type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

const (
	EventMembersChanged    = "members_changed"
	EventPlaylistChanged   = "playlist_changed"
	EventPlayPauseChanged  = "play_pause_changed"
	EventEndedChanged      = "ended_changed"
	EventIndexChanged      = "index_changed"
	EventSeeked            = "seeked"
	EventRepeatModeChanged = "repeat_mode_changed"
	EventPlayAt            = "play_at"
	EventSyncSnapshot      = "sync_snapshot"
)

type MembersChanged struct {
	Members []string `json:"members"`
}

type PlaylistChanged struct {
	Playlist []domain.Track `json:"playlist"`
}

type PlayPauseChanged struct {
	IsPlaying bool `json:"isPlaying"`
}

type EndedChanged struct {
	IsEnded bool `json:"isEnded"`
}

type IndexChanged struct {
	Index int `json:"index"`
}

type Seeked struct {
	Time float64 `json:"time"`
}

type RepeatModeChanged struct {
	Mode domain.RepeatMode `json:"mode"`
}

type PlayAt struct {
	Index    int            `json:"index"`
	Time     float64        `json:"time"`
	Playlist []domain.Track `json:"playlist,omitempty"`
}

// Event is one outbound message. On the wire the payload fields sit next to
// "type" in a single JSON object.
type Event struct {
	Type    string
	Payload any
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, err
		}
	}
	out["type"] = e.Type
	return json.Marshal(out)
}

// Notification is an event plus the sessions that must receive it.
// Recipients are resolved when the room operation runs.
type Notification struct {
	Room       domain.RoomCode `json:"room"`
	Recipients []SessionID     `json:"recipients"`
	Event      Event           `json:"event"`
}

// Notifier delivers notifications. Implementations are called while a room
// lock is held and must not block.
type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Notifiers fans a notification out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(n Notification) {
	for _, x := range ns {
		if x != nil {
			x.Notify(n)
		}
	}
}
