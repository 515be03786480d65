package draftsmith

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/draftsmith/draftsmith/pkg/broadcast"
	"github.com/draftsmith/draftsmith/pkg/history"
	"github.com/draftsmith/draftsmith/pkg/repo"
	"github.com/draftsmith/draftsmith/pkg/staleness"
	"github.com/draftsmith/draftsmith/pkg/store"
	"github.com/draftsmith/draftsmith/pkg/store/memory"
	"github.com/draftsmith/draftsmith/pkg/store/postgres"
)

// Config holds application configuration.
type Config struct {
	// PostgresDSN selects the PostgreSQL backend. Ignored when MemoryOnly
	// is set.
	PostgresDSN string
	// MemoryOnly runs against the in-memory store; state is lost on exit.
	MemoryOnly bool

	// HistoryLimit caps every chapter history. Zero means the default.
	HistoryLimit int

	ServerPort string
}

// App wires the store, guard, repository, history service, and broadcaster
// together and carries them through the HTTP layer.
type App struct {
	config  *Config
	store   store.Store
	guard   *staleness.Guard
	events  *broadcast.Broadcaster
	repo    *repo.Repository
	history *history.Service
	log     zerolog.Logger
}

// New creates a new application instance.
func New(config *Config) (*App, error) {
	return newApp(config, os.Stdout)
}

func newApp(config *Config, logOut io.Writer) (*App, error) {
	log := zerolog.New(logOut).With().Timestamp().Logger()

	var appStore store.Store
	if config.MemoryOnly {
		appStore = memory.New()
		log.Info().Msg("using in-memory store")
	} else {
		pg, err := postgres.New(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		appStore = pg
		log.Info().Msg("connected to PostgreSQL")
	}

	guard := staleness.New(staleness.FudgeFactor)
	events := broadcast.New(log)

	return &App{
		config:  config,
		store:   appStore,
		guard:   guard,
		events:  events,
		repo:    repo.New(appStore, guard, events, log),
		history: history.New(appStore, config.HistoryLimit),
		log:     log,
	}, nil
}

// Close tears down the broadcaster and the store.
func (a *App) Close() error {
	if a.events != nil {
		a.events.Close()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Store returns the underlying store (useful for testing).
func (a *App) Store() store.Store {
	return a.store
}

// getEnv retrieves an environment variable with a fallback default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
