package http

import (
	"context"

	"github.com/dkeye/SyncRoom/internal/adapters/catalog"
	"github.com/dkeye/SyncRoom/internal/adapters/signal"
	"github.com/dkeye/SyncRoom/internal/app/orch"
	"github.com/dkeye/SyncRoom/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "client_token"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware keeps a stable per-browser token in the cookie
// session. It only correlates log lines; it grants nothing.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

type Deps struct {
	Orch   *orch.Orchestrator
	Signal *signal.SignalWSController
	// Search may be nil when no API key is configured.
	Search catalog.Searcher
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SyncRoomSessions", store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{orch: deps.Orch, search: deps.Search}

	r.GET("/", h.dump)
	r.GET("/rooms", h.listRooms)
	r.GET("/health", h.health)

	room := r.Group("/room")
	room.POST("/create", h.createRoom)
	room.POST("/join", h.joinRoom)
	room.GET("/:code/title", h.roomTitle)
	room.GET("/:code/members", h.roomMembers)
	room.GET("/:code/playlist", h.roomPlaylist)

	r.GET("/youtube/search", h.searchYouTube)

	r.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client_token", c.GetString(clientTokenKey)).Msg("ws endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
