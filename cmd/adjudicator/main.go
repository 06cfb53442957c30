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
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "adjudicator").Logger()

	if cfg.QueueDriver != config.QueueDriverKafka {
		logger.Fatal().Str("queue_driver", cfg.QueueDriver).Msg("adjudicator needs QUEUE_DRIVER=kafka; memory mode adjudicates inside api-server")
	}

	logger.Info().
		Strs("brokers", cfg.KafkaBrokers).
		Str("topic", cfg.KafkaTopic).
		Str("group", cfg.KafkaGroupID).
		Int("workers", cfg.Workers).
		Msg("adjudicator starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, db.Options{DSN: cfg.PostgresDSN, MaxConns: int32(cfg.PostgresMaxConn), Logger: &logger})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	go func() {
		if err := metrics.Serve(rootCtx, ":"+cfg.MetricsPort, reg); err != nil {
			logger.Error().Err(err).Msg("metrics listener")
		}
	}()

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewDoctorLocker(rdb, cfg.LockTTL, cfg.LockWait)
	adjudicator := appointment.NewAdjudicator(repo, locker, m, logger)

	consumer := queue.NewKafkaConsumer(queue.KafkaConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroupID,
		Workers: cfg.Workers,
		Retry:   queue.DefaultRetryPolicy,
	}, logger)

	if err := consumer.Run(rootCtx, adjudicator.Handle); err != nil {
		logger.Error().Err(err).Msg("consumer stopped")
	}
	logger.Info().Msg("adjudicator stopped")
}
