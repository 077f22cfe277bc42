package signal

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/SyncRoom/internal/app"
	"github.com/dkeye/SyncRoom/internal/core"
	"github.com/rs/zerolog/log"
)

// Hub maps sessions to their connections and delivers room notifications.
// Notify never blocks: frames go through TrySend and a full queue is handed
// to the backpressure policy.
type Hub struct {
	policy app.Policy

	mu    sync.RWMutex
	conns map[core.SessionID]core.SignalConnection
}

func NewHub(policy app.Policy) *Hub {
	if policy == nil {
		policy = app.SimplePolicy{}
	}
	return &Hub{
		policy: policy,
		conns:  make(map[core.SessionID]core.SignalConnection),
	}
}

func (h *Hub) Register(sid core.SessionID, c core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[sid] = c
}

func (h *Hub) Unregister(sid core.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, sid)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) conn(sid core.SessionID) (core.SignalConnection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[sid]
	return c, ok
}

func (h *Hub) Notify(n core.Notification) {
	if len(n.Recipients) == 0 {
		return
	}
	frame, err := json.Marshal(n.Event)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("type", n.Event.Type).Msg("marshal event")
		return
	}
	for _, sid := range n.Recipients {
		c, ok := h.conn(sid)
		if !ok {
			continue
		}
		h.deliver(n, sid, c, frame)
	}
}

func (h *Hub) deliver(n core.Notification, sid core.SessionID, c core.SignalConnection, frame []byte) {
	err := c.TrySend(frame)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrBackpressure) {
		log.Debug().Err(err).Str("module", "signal.hub").Str("sid", string(sid)).Msg("send to closed connection")
		return
	}
	switch h.policy.OnBackPressure(n.Room, sid) {
	case app.KickMember:
		log.Warn().Str("module", "signal.hub").Str("sid", string(sid)).Str("room", string(n.Room)).Msg("slow consumer kicked")
		// Closing ends the read loop, which disconnects the session.
		go c.Close()
	case app.DropFrame, app.NoAction:
		log.Warn().Str("module", "signal.hub").Str("sid", string(sid)).Str("room", string(n.Room)).Str("type", n.Event.Type).Msg("frame dropped")
	}
}
