package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump ctx done")
			c.Close()
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("ping failed")
				c.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	sid := c.sid
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		ctl.Hub.Unregister(sid)
		ctl.Limiter.Forget(sid)
		ctl.Orch.Disconnect(sid)
		c.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleSignal(c, data)
	}
}

func (ctl *SignalWSController) handleSignal(c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return
	}
	if !ctl.Limiter.Allow(c.sid) {
		log.Warn().Str("module", "signal").Str("sid", string(c.sid)).Str("type", env.Type).Msg("rate limited")
		ctl.sendError(c, "rate_limited")
		return
	}

	switch env.Type {
	case "create_room":
		ctl.handleCreateRoom(c, data)
	case "join_room":
		ctl.handleJoinRoom(c, data)
	case "connect_room":
		ctl.handleConnectRoom(c, data)
	case "leave_room":
		ctl.handleLeaveRoom(c, data)
	case "add_track":
		ctl.handleAddTrack(c, data)
	case "remove_track":
		ctl.handleRemoveTrack(c, data)
	case "toggle_play_pause":
		ctl.handleTogglePlayPause(c, data)
	case "set_ended":
		ctl.handleSetEnded(c, data)
	case "update_current_time":
		ctl.handleUpdateCurrentTime(c, data)
	case "seek":
		ctl.handleSeek(c, data)
	case "change_repeat_mode":
		ctl.handleChangeRepeatMode(c, data)
	case "play_at":
		ctl.handlePlayAt(c, data)
	case "request_sync":
		ctl.handleRequestSync(c, data)
	case "ping":
		ctl.handlePing(c)
	case "whoami":
		ctl.handleWhoAmI(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, "unknown_type")
	}
}

// decode unmarshals a frame into p and answers bad_payload on failure.
func (ctl *SignalWSController) decode(c *WsSignalConn, data []byte, p any) bool {
	if err := json.Unmarshal(data, p); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("bad payload")
		ctl.sendError(c, "bad_payload")
		return false
	}
	return true
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("sendJSON dropped")
	}
}
