package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRooms() Rooms {
	return Rooms{
		"ABC123": {
			Name:    "Movie Night",
			Members: []domain.Member{{ID: "s1", Name: "ann"}},
			Playlist: []domain.Track{
				{ID: 7, AddedBy: "ann", Meta: map[string]any{"videoId": "v7", "title": "Seven"}},
				{ID: 9, AddedBy: "bob", Meta: map[string]any{"videoId": "v9"}},
			},
			Playback: domain.Playback{
				IsPlaying:    true,
				RepeatMode:   domain.RepeatAll,
				CurrentTime:  42.5,
				CurrentIndex: 1,
			},
		},
		"EMPTY1": {Name: "quiet", Playback: domain.DefaultPlayback()},
	}
}

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sq, err := OpenSQLite(filepath.Join(dir, "db", "rooms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(dir, "json", "rooms.json")),
		"sqlite": sq,
	}
}

func TestStores_RoundTrip(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			empty, err := s.Load()
			require.NoError(t, err)
			assert.Empty(t, empty)

			require.NoError(t, s.Save(sampleRooms()))
			got, err := s.Load()
			require.NoError(t, err)
			require.Len(t, got, 2)

			room := got["ABC123"]
			assert.Equal(t, domain.RoomName("Movie Night"), room.Name)
			assert.Equal(t, domain.RepeatAll, room.RepeatMode)
			assert.Equal(t, 42.5, room.CurrentTime)
			assert.Equal(t, 1, room.CurrentIndex)
			require.Len(t, room.Playlist, 2)
			assert.Equal(t, domain.TrackID(9), room.Playlist[1].ID)
			assert.Equal(t, "v7", room.Playlist[0].Meta["videoId"])

			require.NoError(t, s.Save(Rooms{"ONLY01": {Name: "x"}}))
			got, err = s.Load()
			require.NoError(t, err)
			assert.Len(t, got, 1, "save replaces the previous snapshot")
		})
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := NewFileStore(path).Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "rooms.json"))
	require.NoError(t, s.Save(sampleRooms()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rooms.json", entries[0].Name())
}

func TestSQLiteStore_SkipsCorruptRows(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "rooms.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(sampleRooms()))
	_, err = s.db.Exec(`INSERT INTO rooms (code, body) VALUES ('BAD001', 'nope')`)
	require.NoError(t, err)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NotContains(t, got, domain.RoomCode("BAD001"))
}

func TestOpen(t *testing.T) {
	s, err := Open("none", "")
	require.NoError(t, err)
	assert.IsType(t, Nop{}, s)

	s, err = Open("file", filepath.Join(t.TempDir(), "r.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open("etcd", "")
	assert.Error(t, err)
}

type sink struct {
	got Rooms
}

func (s *sink) Restore(r Rooms) int {
	s.got = r
	return len(r)
}

func TestLoadInto_CorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.json")
	require.NoError(t, os.WriteFile(path, []byte("[]]"), 0o644))

	var sk sink
	assert.Equal(t, 0, LoadInto(NewFileStore(path), &sk))
	assert.Nil(t, sk.got)
}

type countingSource struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSource) Snapshot() Rooms {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return sampleRooms()
}

func (c *countingSource) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestRunSaver_SavesOnIntervalAndShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.json")
	store := NewFileStore(path)
	src := &countingSource{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunSaver(ctx, store, src, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return src.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	got, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRunSaver_WithoutIntervalSavesOnShutdown(t *testing.T) {
	src := &countingSource{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	RunSaver(ctx, Nop{}, src, 0)
	assert.Equal(t, 1, src.count())
}
