package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/groupshout/internal/config"
	"github.com/vovakirdan/groupshout/internal/core"
	"github.com/vovakirdan/groupshout/internal/store"
	"github.com/vovakirdan/groupshout/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/groupshout/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.ResultStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.ResultsDB)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.ResultsDB).Msg("results archive initialized")

	hub := core.NewHub(st, core.HubOptions{
		DefaultStartDelay: cfg.DefaultStartDelay,
		MaxStartDelay:     cfg.MaxStartDelay,
	}, logger)
	server := transporthttp.NewServer(hub, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the hub and the HTTP server and blocks until ctx is cancelled or
// the server fails. The store is closed after the hub has flushed its archive.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
