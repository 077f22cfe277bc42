package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dkeye/SyncRoom/internal/adapters/catalog"
	"github.com/dkeye/SyncRoom/internal/app"
	"github.com/dkeye/SyncRoom/internal/app/orch"
	"github.com/dkeye/SyncRoom/internal/core"
	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch   *orch.Orchestrator
	search catalog.Searcher
}

type CreateRoomRequest struct {
	RoomTitle string `json:"roomTitle"`
}

type JoinRoomRequest struct {
	RoomCode string `json:"roomCode" binding:"required"`
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "room not found"})
}

func (h *handlers) room(c *gin.Context) (*core.Room, bool) {
	room, ok := h.orch.Registry.Get(domain.RoomCode(c.Param("code")))
	if !ok {
		notFound(c)
	}
	return room, ok
}

// dump returns every room keyed by code.
func (h *handlers) dump(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Registry.Snapshot())
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Registry.List()})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "syncroom"})
}

func (h *handlers) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid body"})
		return
	}
	code, err := h.orch.Registry.Create(domain.RoomName(strings.TrimSpace(req.RoomTitle)))
	if errors.Is(err, app.ErrCodeSpaceExhausted) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "no free room code"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "create failed"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(code)).Str("client_token", c.GetString(clientTokenKey)).Msg("room created")
	c.JSON(http.StatusOK, gin.H{"success": true, "inviteCode": code})
}

// joinRoom only checks that the code resolves; membership starts with
// connect_room on the socket.
func (h *handlers) joinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "missing roomCode"})
		return
	}
	if _, ok := h.orch.Registry.Get(domain.RoomCode(req.RoomCode)); !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) roomTitle(c *gin.Context) {
	room, ok := h.room(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "roomName": room.Name()})
}

func (h *handlers) roomMembers(c *gin.Context) {
	room, ok := h.room(c)
	if !ok {
		return
	}
	members := room.Members()
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "members": names, "sessions": members})
}

func (h *handlers) roomPlaylist(c *gin.Context) {
	room, ok := h.room(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "playlist": room.Playlist()})
}

func (h *handlers) searchYouTube(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "missing query"})
		return
	}
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "search is not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	items, err := h.search.Search(c.Request.Context(), query, limit)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("query", query).Msg("youtube search")
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "items": items})
}
