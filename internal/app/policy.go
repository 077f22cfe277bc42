package app

import (
	"strings"

	"github.com/dkeye/SyncRoom/internal/core"
	"github.com/dkeye/SyncRoom/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a session whose outbound queue is full.
type Policy interface {
	OnBackPressure(room domain.RoomCode, sid core.SessionID) BackpressureAction
}

// SimplePolicy drops the frame; the client recovers with request_sync.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomCode, core.SessionID) BackpressureAction {
	return DropFrame
}

// KickPolicy disconnects slow consumers.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(domain.RoomCode, core.SessionID) BackpressureAction {
	return KickMember
}

// PolicyByName maps the config value to a policy. Unknown names fall back to SimplePolicy.
func PolicyByName(name string) Policy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "kick":
		return KickPolicy{}
	default:
		return SimplePolicy{}
	}
}
