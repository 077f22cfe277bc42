package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SyncRoom/internal/adapters/catalog"
	"github.com/dkeye/SyncRoom/internal/adapters/events"
	router "github.com/dkeye/SyncRoom/internal/adapters/http"
	wssignal "github.com/dkeye/SyncRoom/internal/adapters/signal"
	"github.com/dkeye/SyncRoom/internal/app"
	"github.com/dkeye/SyncRoom/internal/app/orch"
	"github.com/dkeye/SyncRoom/internal/config"
	"github.com/dkeye/SyncRoom/internal/core"
	"github.com/dkeye/SyncRoom/internal/domain"
	"github.com/dkeye/SyncRoom/internal/snapshot"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, v, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.ApplyLogLevel(cfg.Log.Level)
	config.Watch(v, nil)

	// Sockets and the event mirror run on their own contexts. They are
	// stopped by shutdown, after the final snapshot.
	connCtx, stopConns := context.WithCancel(context.Background())
	defer stopConns()
	pubCtx, stopPub := context.WithCancel(context.Background())
	defer stopPub()

	hub := wssignal.NewHub(app.PolicyByName(cfg.Backpressure))
	notifiers := core.Notifiers{hub}

	var (
		rdb     *redis.Client
		pubDone <-chan struct{}
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("bad redis url")
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		pub := events.NewPublisher(rdb, cfg.Redis.EventsChannel, 1024)
		go pub.Run(pubCtx)
		notifiers = append(notifiers, pub)
		pubDone = pub.Done()
	}

	reg := app.NewRegistry(app.RegistryOptions{
		Codes:     app.RandomCodes{Length: cfg.Room.CodeLength},
		Notifier:  notifiers,
		JoinGrace: cfg.Room.JoinGrace,
	})

	store, err := snapshot.Open(cfg.Snapshot.Driver, cfg.Snapshot.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open snapshot store")
	}
	defer store.Close()
	snapshot.LoadInto(store, reg)

	if cfg.Room.PinnedCode != "" {
		reg.EnsurePinned(domain.RoomCode(cfg.Room.PinnedCode), domain.RoomName(cfg.Room.PinnedTitle))
	}

	search := newSearcher(ctx, cfg, rdb)

	o := orch.New(reg)
	ctl := wssignal.NewSignalWSController(o, hub, wssignal.Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		SendBuffer:   cfg.SendBuffer,
		RateLimit:    cfg.RateLimit.Limit,
		RateInterval: cfg.RateLimit.Interval,
	})

	go app.RunSweeper(ctx, reg, cfg.Room.SweepInterval)

	saverDone := make(chan struct{})
	go func() {
		defer close(saverDone)
		snapshot.RunSaver(ctx, store, reg, cfg.Snapshot.Interval)
	}()

	r := router.SetupRouter(connCtx, cfg, router.Deps{Orch: o, Signal: ctl, Search: search})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("SyncRoom server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdown{
		server:    srv,
		saverDone: saverDone,
		stopConns: stopConns,
		stopPub:   stopPub,
		pubDone:   pubDone,
	}.run(shutdownTimeout)
	log.Info().Msg("Server exited gracefully")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown orders the stop sequence. The saver's final snapshot must land
// before sockets close: every disconnect sweeps the rooms it empties.
type shutdown struct {
	server    shutdowner
	saverDone <-chan struct{}
	stopConns context.CancelFunc
	stopPub   context.CancelFunc
	pubDone   <-chan struct{} // nil without an event mirror
}

func (s shutdown) run(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	wait(ctx, s.saverDone, "snapshot save")
	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	s.stopConns()
	s.stopPub()
	if s.pubDone != nil {
		wait(ctx, s.pubDone, "event flush")
	}
}

func wait(ctx context.Context, done <-chan struct{}, what string) {
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Str("module", "main").Str("step", what).Msg("shutdown step timed out")
	}
}

func newSearcher(ctx context.Context, cfg *config.Config, rdb *redis.Client) catalog.Searcher {
	if cfg.YouTube.APIKey == "" {
		log.Warn().Str("module", "main").Msg("youtube.api_key not set, search disabled")
		return nil
	}
	yt, err := catalog.NewYouTubeSearcher(ctx, cfg.YouTube.APIKey, cfg.YouTube.Endpoint, cfg.YouTube.MaxResults)
	if err != nil {
		log.Error().Err(err).Str("module", "main").Msg("youtube client, search disabled")
		return nil
	}
	if rdb != nil && cfg.Search.CacheTTL > 0 {
		return catalog.NewCachedSearcher(yt, rdb, cfg.Search.CacheTTL)
	}
	return yt
}
