// Package main is the entry point for the Secret Santa bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"secret-santa-bot/internal/bot"
	"secret-santa-bot/internal/config"
	"secret-santa-bot/internal/pairing"
	"secret-santa-bot/internal/pkg/db"
	"secret-santa-bot/internal/service"
	"secret-santa-bot/internal/store"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Str("backend", cfg.Store.Backend).Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, shutdownStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer shutdownStore()

	generator := pairing.New(&pairing.Config{
		MinParticipants: cfg.Game.MinParticipants,
	})

	deps := &bot.Dependencies{
		Config:          cfg,
		GameService:     service.NewGameService(st, generator),
		WishlistService: service.NewWishlistService(st),
		UserRefService:  service.NewUserRefService(st),
	}

	telegramBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	telegramBot.Stop()
	cancel()
	log.Info().Msg("Bot stopped gracefully")
}

// openStore builds the configured storage backend. The returned shutdown
// function flushes and releases whatever the backend holds.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		log.Info().Msg("Using in-memory store")
		return store.NewMemoryStore(), func() {}, nil

	case config.BackendSnapshot:
		st, err := store.NewSnapshotStore(cfg.Store.SnapshotPath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().
			Str("path", cfg.Store.SnapshotPath).
			Dur("interval", cfg.Store.SnapshotInterval).
			Msg("Using snapshot store")

		stop := startSnapshotLoop(ctx, st, cfg.Store.SnapshotInterval)
		shutdown := func() {
			stop()
			if err := st.Snapshot(); err != nil {
				log.Error().Err(err).Msg("Failed to write final snapshot")
			}
		}
		return st, shutdown, nil

	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx, pool.Pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Msg("Using PostgreSQL store")
		return store.NewPostgresStore(pool.Pool), pool.Close, nil

	default:
		// config.Load already validated the backend
		log.Fatal().Str("backend", cfg.Store.Backend).Msg("Unknown store backend")
		return nil, nil, nil
	}
}

// startSnapshotLoop periodically persists the snapshot store's state. The
// returned function stops the loop.
func startSnapshotLoop(ctx context.Context, st *store.SnapshotStore, interval time.Duration) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := st.Snapshot(); err != nil {
					log.Error().Err(err).Str("path", st.Path()).Msg("Failed to write snapshot")
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
