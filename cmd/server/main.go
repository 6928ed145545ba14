package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/iromu/weplay/internal/app"
	"github.com/iromu/weplay/internal/config"
	"github.com/iromu/weplay/internal/log"
)

func main() {
	var (
		configPath string
		overrides  config.Config
	)

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flag.StringVar(&overrides.RedisURL, "redis-url", "", "redis connection url")
	flag.StringVar(&overrides.NatsURL, "nats-url", "", "event bus url")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.DurationVar(&overrides.ThrottleInterval, "throttle-interval", 0, "minimum interval between viewer inputs")
	flag.DurationVar(&overrides.SweepInterval, "sweep-interval", 0, "room reconciliation sweep interval")
	flag.Parse()

	instance := uuid.NewString()
	bootstrap := log.New("info", instance)

	cfg, path, err := config.Load(bootstrap, configPath)
	if err != nil {
		stdlog.Fatalf("load config: %v", err)
	}
	cfg.UpdateFrom(overrides)

	logger := log.New(cfg.LogLevel, instance)
	logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting weplay gateway")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, instance, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init application")
	}

	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
