package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
)

type app struct {
	cfg    config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Clinic booking maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.pool != nil {
				a.pool.Close()
			}
		},
	}
	root.AddCommand(newMigrateCmd(a), newSeedCmd(a), newTokenCmd(a))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		a.logger.Error().Err(err).Msg("admin command failed")
		stop()
		os.Exit(1)
	}
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		a.logger = logging.New("dev", "info")
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "admin").Logger()

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(pgCtx, db.Options{DSN: cfg.PostgresDSN, Logger: &a.logger})
	if err != nil {
		return err
	}
	a.pool = pool
	return nil
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := db.Migrate(cmd.Context(), a.pool); err != nil {
				return err
			}
			a.logger.Info().Msg("schema applied")
			return nil
		},
	}
}
