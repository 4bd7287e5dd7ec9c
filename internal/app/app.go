package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/linwc/talkwire-server/internal/auth"
	"github.com/linwc/talkwire-server/internal/config"
	"github.com/linwc/talkwire-server/internal/core"
	"github.com/linwc/talkwire-server/internal/service/friends"
	"github.com/linwc/talkwire-server/internal/service/messages"
	"github.com/linwc/talkwire-server/internal/store"
	"github.com/linwc/talkwire-server/internal/store/sqlite"
	transporthttp "github.com/linwc/talkwire-server/internal/transport/http"
)

// App wires together the store, core, service and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is not configured")
	}

	st, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DBPath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	metrics := core.NewMetrics()
	registry := core.NewRegistry(logger, metrics)
	router := core.NewRouter(registry, st, st, logger, metrics)
	notifier := core.NewNotifier(registry, logger, metrics)

	friendsService := friends.New(st, notifier, logger)
	messagesService := messages.New(st, notifier, logger)

	server := transporthttp.NewServer(transporthttp.Deps{
		Auth:     authService,
		Registry: registry,
		Router:   router,
		Friends:  friendsService,
		Messages: messagesService,
		Store:    st,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
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
