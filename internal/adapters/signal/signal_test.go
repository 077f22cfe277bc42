package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/SyncRoom/internal/app"
	"github.com/dkeye/SyncRoom/internal/app/orch"
	"github.com/dkeye/SyncRoom/internal/core"
	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv  *httptest.Server
	ctl  *SignalWSController
	orch *orch.Orchestrator
	url  string
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(app.SimplePolicy{})
	reg := app.NewRegistry(app.RegistryOptions{Notifier: hub, JoinGrace: time.Hour})
	o := orch.New(reg)
	ctl := NewSignalWSController(o, hub, opts)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{
		srv:  srv,
		ctl:  ctl,
		orch: o,
		url:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

// next reads frames until one of type typ arrives.
func next(t *testing.T, ws *websocket.Conn, typ string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		if m["type"] == typ {
			return m
		}
	}
}

// collectUntilPong returns the types of every frame that arrives before a pong.
func collectUntilPong(t *testing.T, ws *websocket.Conn) []string {
	t.Helper()
	send(t, ws, map[string]any{"type": "ping"})
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out []string
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		if m["type"] == "pong" {
			return out
		}
		out = append(out, m["type"].(string))
	}
}

func connect(t *testing.T, ws *websocket.Conn, code domain.RoomCode, name string) map[string]any {
	t.Helper()
	send(t, ws, map[string]any{"type": "connect_room", "roomCode": code, "userName": name, "requestId": "r-" + name})
	return next(t, ws, "ack")
}

func TestConnectRoom_UnknownCode(t *testing.T) {
	ts := newTestServer(t, Options{})
	ws := ts.dial(t)

	resp := connect(t, ws, "nope", "ann")
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "room not found", resp["message"])
	assert.Equal(t, "r-ann", resp["requestId"])
}

func TestConnectRoom_AckAndMembers(t *testing.T) {
	ts := newTestServer(t, Options{})
	code, err := ts.orch.Registry.Create("movies")
	require.NoError(t, err)

	a := ts.dial(t)
	resp := connect(t, a, code, "ann")
	require.Equal(t, true, resp["success"])
	state := resp["state"].(map[string]any)
	assert.Equal(t, "movies", state["roomName"])
	assert.Equal(t, true, state["isPlaying"])
	assert.Equal(t, "none", state["repeatMode"])

	b := ts.dial(t)
	connect(t, b, code, "bob")

	m := next(t, a, core.EventMembersChanged)
	for m["members"].([]any)[len(m["members"].([]any))-1] != "bob" {
		m = next(t, a, core.EventMembersChanged)
	}
	assert.Equal(t, []any{"ann", "bob"}, m["members"])
}

func TestPlaylistAndPlaybackFlow(t *testing.T) {
	ts := newTestServer(t, Options{})
	code, err := ts.orch.Registry.Create("r")
	require.NoError(t, err)

	a := ts.dial(t)
	b := ts.dial(t)
	connect(t, a, code, "ann")
	connect(t, b, code, "bob")

	send(t, a, map[string]any{"type": "add_track", "track": map[string]any{"videoId": "v1", "title": "One", "id": 999}})
	pl := next(t, b, core.EventPlaylistChanged)
	tracks := pl["playlist"].([]any)
	require.Len(t, tracks, 1)
	track := tracks[0].(map[string]any)
	assert.Equal(t, "v1", track["videoId"])
	assert.Equal(t, "ann", track["addedBy"])
	assert.NotEqual(t, float64(999), track["id"])

	send(t, a, map[string]any{"type": "set_ended", "roomCode": code, "isEnded": true})
	ended := next(t, b, core.EventEndedChanged)
	assert.Equal(t, true, ended["isEnded"])
	assert.NotContains(t, collectUntilPong(t, a), core.EventEndedChanged)

	send(t, b, map[string]any{"type": "update_current_time", "roomCode": code, "time": 12.5})
	send(t, b, map[string]any{"type": "change_repeat_mode", "roomCode": code, "mode": "all"})
	rm := next(t, a, core.EventRepeatModeChanged)
	assert.Equal(t, "all", rm["mode"])

	send(t, b, map[string]any{"type": "change_repeat_mode", "roomCode": code, "mode": "shuffle"})
	errFrame := next(t, b, "error")
	assert.Equal(t, "invalid_repeat_mode", errFrame["error"])

	send(t, a, map[string]any{"type": "request_sync", "roomCode": code})
	snap := next(t, a, core.EventSyncSnapshot)
	assert.Equal(t, 12.5, snap["currentTime"])
	assert.Equal(t, true, snap["isEnded"])
	assert.Equal(t, "all", snap["repeatMode"])
	assert.NotContains(t, collectUntilPong(t, b), core.EventSyncSnapshot)

	send(t, b, map[string]any{"type": "remove_track", "trackId": track["id"]})
	next(t, a, core.EventPlaylistChanged)
	idx := next(t, a, core.EventIndexChanged)
	assert.Equal(t, float64(0), idx["index"])
	ended = next(t, a, core.EventEndedChanged)
	assert.Equal(t, true, ended["isEnded"])

	send(t, a, map[string]any{"type": "seek", "roomCode": code, "time": 3})
	seek := next(t, b, core.EventSeeked)
	assert.Equal(t, float64(3), seek["time"])

	send(t, a, map[string]any{"type": "toggle_play_pause", "roomCode": code})
	pp := next(t, b, core.EventPlayPauseChanged)
	assert.Equal(t, false, pp["isPlaying"])
}

func TestWhoAmIAndPing(t *testing.T) {
	ts := newTestServer(t, Options{})
	code, err := ts.orch.Registry.Create("r")
	require.NoError(t, err)

	ws := ts.dial(t)
	send(t, ws, map[string]any{"type": "whoami"})
	who := next(t, ws, "whoami")
	assert.NotEmpty(t, who["sessionId"])
	assert.Nil(t, who["roomCode"])

	connect(t, ws, code, "ann")
	send(t, ws, map[string]any{"type": "whoami"})
	who = next(t, ws, "whoami")
	assert.Equal(t, string(code), who["roomCode"])
	assert.Equal(t, "ann", who["name"])

	send(t, ws, map[string]any{"type": "ping"})
	next(t, ws, "pong")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	bad := next(t, ws, "error")
	assert.Equal(t, "bad_payload", bad["error"])

	send(t, ws, map[string]any{"type": "dance"})
	unknown := next(t, ws, "error")
	assert.Equal(t, "unknown_type", unknown["error"])
}

func TestLeaveAndDisconnect(t *testing.T) {
	ts := newTestServer(t, Options{})
	code, err := ts.orch.Registry.Create("r")
	require.NoError(t, err)

	a := ts.dial(t)
	b := ts.dial(t)
	connect(t, a, code, "ann")
	connect(t, b, code, "bob")

	send(t, a, map[string]any{"type": "leave_room", "roomCode": code})
	m := next(t, b, core.EventMembersChanged)
	for len(m["members"].([]any)) != 1 {
		m = next(t, b, core.EventMembersChanged)
	}
	assert.Equal(t, []any{"bob"}, m["members"])

	require.NoError(t, b.Close())
	assert.Eventually(t, func() bool {
		_, ok := ts.orch.Registry.Get(code)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "room is swept once the last member disconnects")
	assert.Eventually(t, func() bool { return ts.ctl.Hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRateLimitedFrames(t *testing.T) {
	ts := newTestServer(t, Options{RateLimit: 2, RateInterval: time.Minute})
	ws := ts.dial(t)

	for i := 0; i < 3; i++ {
		send(t, ws, map[string]any{"type": "ping"})
	}
	next(t, ws, "pong")
	next(t, ws, "pong")
	limited := next(t, ws, "error")
	assert.Equal(t, "rate_limited", limited["error"])
}

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	err    error
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(err error) *fakeConn { return &fakeConn{err: err, closed: make(chan struct{})} }

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() { f.once.Do(func() { close(f.closed) }) }

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func TestHub_DeliversToRecipientsOnly(t *testing.T) {
	hub := NewHub(nil)
	a, b := newFakeConn(nil), newFakeConn(nil)
	hub.Register("a", a)
	hub.Register("b", b)

	hub.Notify(core.Notification{
		Room:       "R",
		Recipients: []core.SessionID{"a", "ghost"},
		Event:      core.Event{Type: core.EventSeeked, Payload: core.Seeked{Time: 4}},
	})

	require.Len(t, a.frames, 1)
	assert.JSONEq(t, `{"type":"seeked","time":4}`, string(a.frames[0]))
	assert.Empty(t, b.frames)

	hub.Unregister("a")
	hub.Notify(core.Notification{Recipients: []core.SessionID{"a"}, Event: core.Event{Type: core.EventSeeked}})
	assert.Len(t, a.frames, 1)
}

func TestHub_BackpressurePolicy(t *testing.T) {
	n := core.Notification{Room: "R", Recipients: []core.SessionID{"slow"}, Event: core.Event{Type: core.EventPlayAt}}

	drop := NewHub(app.SimplePolicy{})
	slow := newFakeConn(ErrBackpressure)
	drop.Register("slow", slow)
	drop.Notify(n)
	assert.False(t, slow.isClosed())

	kick := NewHub(app.KickPolicy{})
	slow = newFakeConn(ErrBackpressure)
	kick.Register("slow", slow)
	kick.Notify(n)
	assert.Eventually(t, slow.isClosed, time.Second, 5*time.Millisecond)
}

func TestSessionRateLimiter_SlidingWindow(t *testing.T) {
	now := time.Unix(100, 0)
	rl := NewSessionRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("s"))
	assert.True(t, rl.Allow("s"))
	assert.False(t, rl.Allow("s"))
	assert.True(t, rl.Allow("other"))

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, rl.Allow("s"))

	rl.Forget("s")
	assert.True(t, rl.Allow("s"))
	assert.True(t, rl.Allow("s"))
}

func TestCreateAndJoinRoomOverSocket(t *testing.T) {
	ts := newTestServer(t, Options{})
	ws := ts.dial(t)

	send(t, ws, map[string]any{"type": "create_room", "roomTitle": "socket room", "requestId": "c1"})
	created := next(t, ws, "ack")
	require.Equal(t, true, created["success"])
	assert.Equal(t, "c1", created["requestId"])
	code := created["inviteCode"].(string)

	room, ok := ts.orch.Registry.Get(domain.RoomCode(code))
	require.True(t, ok)
	assert.Equal(t, domain.RoomName("socket room"), room.Name())

	send(t, ws, map[string]any{"type": "join_room", "roomCode": code, "requestId": "j1"})
	joined := next(t, ws, "ack")
	assert.Equal(t, true, joined["success"])

	send(t, ws, map[string]any{"type": "join_room", "roomCode": "missing", "requestId": "j2"})
	missing := next(t, ws, "ack")
	assert.Equal(t, false, missing["success"])
	assert.Equal(t, "room not found", missing["message"])
}
