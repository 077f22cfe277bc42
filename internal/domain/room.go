package domain

import "fmt"

type (
	RoomCode string
	RoomName string
)

type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatOne  RepeatMode = "one"
	RepeatAll  RepeatMode = "all"
)

func ParseRepeatMode(s string) (RepeatMode, error) {
	switch m := RepeatMode(s); m {
	case RepeatNone, RepeatOne, RepeatAll:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRepeatMode, s)
}

// Playback is the cursor every client of a room follows.
type Playback struct {
	IsPlaying    bool       `json:"isPlaying"`
	IsEnded      bool       `json:"isEnded"`
	RepeatMode   RepeatMode `json:"repeatMode"`
	CurrentTime  float64    `json:"currentTime"`
	CurrentIndex int        `json:"currentIndex"`
}

// DefaultPlayback is the state of a freshly created room.
func DefaultPlayback() Playback {
	return Playback{
		IsPlaying:  true,
		RepeatMode: RepeatNone,
	}
}

// RoomState is a detached copy of a room, used for dumps and snapshots.
type RoomState struct {
	Name     RoomName `json:"roomName"`
	Members  []Member `json:"members"`
	Playlist []Track  `json:"playlist"`
	Playback
}
