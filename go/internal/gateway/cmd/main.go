package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/colortap/go/internal/config"
	"github.com/mcdev12/colortap/go/internal/dbconfig"
	"github.com/mcdev12/colortap/go/internal/events"
	"github.com/mcdev12/colortap/go/internal/game"
	"github.com/mcdev12/colortap/go/internal/game/postgres"
	"github.com/mcdev12/colortap/go/internal/gateway"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	config.SetupLogging(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, pool := setupStore(ctx, cfg)
	if pool != nil {
		defer pool.Close()
	}

	instanceID := uuid.New().String()[:8]
	publisher, closePublisher := setupPublisher(cfg, instanceID)
	defer closePublisher()

	engine := game.NewEngine(store, cfg.Settings(),
		game.WithPublisher(publisher),
		game.WithInstanceID(instanceID),
	)
	stats, err := engine.Stats(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read initial session")
	}

	log.Info().
		Str("instance_id", stats.InstanceID).
		Str("session_id", stats.SessionID).
		Str("store_mode", stats.StoreMode).
		Int("port", cfg.Server.Port).
		Int("required_players", cfg.Game.RequiredPlayers).
		Int("max_questions", cfg.Game.MaxQuestions).
		Msg("starting game server")

	go engine.RunSweeper(ctx, cfg.Game.SweepInterval)

	httpCfg := gateway.DefaultConfig()
	httpCfg.RateLimit = cfg.Server.RateLimit
	httpCfg.RateLimitBurst = cfg.Server.RateLimitBurst
	httpCfg.Stream.Interval = cfg.Server.StreamInterval

	handler := gateway.NewHandler(engine, &gateway.ConnectionTracker{}, httpCfg)
	server := gateway.NewServer(cfg.Server.Port, handler)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-serverErr:
		log.Fatal().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	handler.CloseStreams()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	log.Info().Msg("game server shutdown complete")
}

// setupStore connects the shared store, falling back to an in-process one
// when Postgres is unreachable.
func setupStore(ctx context.Context, cfg *config.Config) (game.Store, *pgxpool.Pool) {
	if cfg.Store.Driver != "postgres" {
		return game.NewMemoryStore(cfg.Store.SessionID, time.Now()), nil
	}

	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := dbCfg.Connect(ctx)
	if err != nil {
		log.Warn().
			Err(err).
			Bool("degraded", true).
			Str("database", dbCfg.Database).
			Msg("shared store unreachable, continuing on in-process store")
		return game.NewFallbackStore(cfg.Store.SessionID, time.Now()), nil
	}

	store := postgres.NewStore(pool, cfg.Store.SessionID)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		log.Warn().
			Err(err).
			Bool("degraded", true).
			Msg("shared store schema setup failed, continuing on in-process store")
		return game.NewFallbackStore(cfg.Store.SessionID, time.Now()), nil
	}

	log.Info().
		Str("database", dbCfg.Database).
		Str("host", dbCfg.Host).
		Msg("connected to shared session store")
	return store, pool
}

func setupPublisher(cfg *config.Config, instanceID string) (events.Publisher, func()) {
	if cfg.Events.NATSURL == "" {
		return events.LogPublisher{}, func() {}
	}

	nc, err := events.Connect(events.DefaultConnectConfig(cfg.Events.NATSURL))
	if err != nil {
		log.Warn().Err(err).Str("nats_url", cfg.Events.NATSURL).Msg("event publishing disabled")
		return events.LogPublisher{}, func() {}
	}
	log.Info().Str("nats_url", cfg.Events.NATSURL).Msg("publishing session events to NATS")
	return events.NewNATSPublisher(nc, events.DefaultSubjectPrefix, instanceID), func() {
		if err := nc.Drain(); err != nil {
			log.Error().Err(err).Msg("failed to drain NATS connection")
		}
	}
}
