package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/queue"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "api-server").Logger()
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("queue_driver", cfg.QueueDriver).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, db.Options{DSN: cfg.PostgresDSN, MaxConns: int32(cfg.PostgresMaxConn), Logger: &logger})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	repo := appointment.NewPgRepository(pgPool)
	directory := identity.NewPgDirectory(pgPool)

	checks := []api.Check{{Name: "postgres", Critical: true, Ping: pgPool.Ping}}

	var publisher queue.Publisher
	switch cfg.QueueDriver {
	case config.QueueDriverMemory:
		publisher = startInProcess(rootCtx, cfg, repo, m, logger)
	default:
		rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer closeRedis(rdb, logger)
		checks = append(checks, api.Check{Name: "redis", Ping: redisclient.Ping(rdb)})

		kp := queue.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing kafka writer")
			}
		}()
		publisher = kp
	}

	svc := appointment.NewService(repo, directory, publisher, cfg.Location(), m, logger)

	router := api.NewRouter(api.RouterConfig{
		Service:   svc,
		Auth:      auth.NewAuthenticator([]byte(cfg.JWTSecret), cfg.JWTIssuer, directory, logger),
		Registrar: directory,
		Health:    api.NewHealthHandler(checks, cfg.Env, version),
		Metrics:   m,
		Gatherer:  reg,
		Logger:    logger,
		Location:  cfg.Location(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
		os.Exit(1)
	}
}

// startInProcess runs the adjudicator and reconciler inside this process
// against an in-memory queue. Only valid for a single api-server instance.
func startInProcess(ctx context.Context, cfg config.Config, repo appointment.Repository, m *metrics.Metrics, logger zerolog.Logger) queue.Publisher {
	mq := queue.NewMemoryQueue(cfg.Workers, 1024, queue.DefaultRetryPolicy, logger)
	adjudicator := appointment.NewAdjudicator(repo, appointment.NewLocalLocker(), m, logger)
	reconciler := appointment.NewReconciler(repo, mq, cfg.StaleAfter, m, logger)

	go func() {
		_ = mq.Run(ctx, adjudicator.Handle)
	}()
	go reconciler.Run(ctx, cfg.ReconcileEvery)

	logger.Warn().Int("partitions", cfg.Workers).Msg("running in-process adjudication, do not scale this instance")
	return mq
}

func closeRedis(rdb *redis.Client, logger zerolog.Logger) {
	if err := rdb.Close(); err != nil {
		logger.Warn().Err(err).Msg("error closing redis")
	}
}
