package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "reconciler").Logger()

	if cfg.QueueDriver != config.QueueDriverKafka {
		logger.Fatal().Str("queue_driver", cfg.QueueDriver).Msg("reconciler needs QUEUE_DRIVER=kafka; memory mode reconciles inside api-server")
	}

	logger.Info().
		Dur("interval", cfg.ReconcileEvery).
		Dur("stale_after", cfg.StaleAfter).
		Msg("reconciler starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, db.Options{DSN: cfg.PostgresDSN, MaxConns: int32(cfg.PostgresMaxConn), Logger: &logger})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	go func() {
		if err := metrics.Serve(rootCtx, ":"+cfg.MetricsPort, reg); err != nil {
			logger.Error().Err(err).Msg("metrics listener")
		}
	}()

	publisher := queue.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing kafka writer")
		}
	}()

	reconciler := appointment.NewReconciler(appointment.NewPgRepository(pgPool), publisher, cfg.StaleAfter, m, logger)
	reconciler.Run(rootCtx, cfg.ReconcileEvery)

	logger.Info().Msg("shutdown signal received, reconciler stopped")
}
