// Package snapshot persists room state between restarts of a single process.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrCorrupt = errors.New("corrupt snapshot")

type Rooms = map[domain.RoomCode]domain.RoomState

type Store interface {
	// Load returns an empty map when nothing was saved yet.
	Load() (Rooms, error)
	Save(Rooms) error
	Close() error
}

// Open picks a store by driver name: file, sqlite or none.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "none":
		return Nop{}, nil
	case "file", "json":
		return NewFileStore(path), nil
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown snapshot driver %q", driver)
	}
}

type Nop struct{}

func (Nop) Load() (Rooms, error) { return Rooms{}, nil }
func (Nop) Save(Rooms) error     { return nil }
func (Nop) Close() error         { return nil }

// Source is what gets saved; Sink is what a loaded snapshot is handed to.
type (
	Source interface{ Snapshot() Rooms }
	Sink   interface{ Restore(Rooms) int }
)

// LoadInto restores a saved snapshot. Missing or unreadable data leaves the
// sink empty and is only logged.
func LoadInto(s Store, sink Sink) int {
	rooms, err := s.Load()
	if err != nil {
		log.Warn().Err(err).Str("module", "snapshot").Msg("snapshot ignored, starting empty")
		return 0
	}
	return sink.Restore(rooms)
}

// RunSaver saves src every interval and once more when ctx is done.
func RunSaver(ctx context.Context, s Store, src Source, interval time.Duration) {
	save := func() {
		rooms := src.Snapshot()
		if err := s.Save(rooms); err != nil {
			log.Error().Err(err).Str("module", "snapshot").Msg("save snapshot")
			return
		}
		log.Debug().Str("module", "snapshot").Int("rooms", len(rooms)).Msg("snapshot saved")
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			save()
			return
		case <-tick:
			save()
		}
	}
}
