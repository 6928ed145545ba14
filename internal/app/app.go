package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	natsbus "github.com/iromu/weplay/internal/bus/nats"
	"github.com/iromu/weplay/internal/config"
	"github.com/iromu/weplay/internal/core"
	"github.com/iromu/weplay/internal/store"
	"github.com/iromu/weplay/internal/store/memory"
	redisstore "github.com/iromu/weplay/internal/store/redis"
	transporthttp "github.com/iromu/weplay/internal/transport/http"
)

// App wires together broker, bus, store and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	gateway         *core.Gateway
	gc              *core.SessionGC
	bus             *natsbus.Bus
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, instance string, logger *zerolog.Logger) (*App, error) {
	st, err := newStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	bus, err := natsbus.Connect(cfg.NatsURL, instance, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("connect bus: %w", err)
	}

	groups := transporthttp.NewGroups(logger)
	gateway := core.NewGateway(core.Options{
		Instance:         instance,
		ThrottleInterval: cfg.ThrottleInterval,
		EventLogCap:      cfg.EventLogCap,
	}, bus, groups, st, logger)

	if err := bus.SetHandler(gateway); err != nil {
		bus.Close()
		_ = st.Close()
		return nil, fmt.Errorf("wire bus handlers: %w", err)
	}

	server := transporthttp.NewServer(gateway, groups, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		gateway:         gateway,
		gc:              gateway.GC(cfg.SweepInterval, logger),
		bus:             bus,
		store:           st,
		log:             logger,
	}, nil
}

func newStore(cfg *config.Config, logger *zerolog.Logger) (store.Store, error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("no redis url configured, using in-process store")
		return memory.New(cfg.EventLogCap), nil
	}
	return redisstore.New(cfg.RedisURL, cfg.EventLogCap, logger)
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	// Ask the catalog for the default hash up front so early connections can
	// join without waiting for the first retry.
	a.gateway.HandleCompressorConnect()

	go a.gc.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
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

// cleanup removes this instance's shared-store traces and closes resources.
func (a *App) cleanup() {
	a.gateway.Close()
	a.bus.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
	}
}
