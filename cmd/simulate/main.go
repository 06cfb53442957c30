package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
)

// SimConfig drives a load run that deliberately books a handful of slots
// from many patients at once, then checks that adjudication let at most
// one appointment per doctor through in any conflict window.
type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	PatientLimit  int
	DoctorLimit   int
	SlotCount     int
	SettleTimeout time.Duration
	App           config.Config
}

func main() {
	base, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New(base.Env, base.LogLevel).With().Str("service", "simulate").Logger()

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.7),
		PatientLimit:  getInt("SIM_PATIENT_LIMIT", 200),
		DoctorLimit:   getInt("SIM_DOCTOR_LIMIT", 3),
		SlotCount:     getInt("SIM_SLOTS", 4),
		SettleTimeout: getDuration("SIM_SETTLE_TIMEOUT", time.Minute),
		App:           base,
	}
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking_ratio", cfg.BookingRatio).
		Int("slots", cfg.SlotCount).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pgPool, err := db.ConnectPostgres(ctx, db.Options{DSN: cfg.App.PostgresDSN})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	data, err := loadDataPool(loadCtx, pgPool, cfg)
	cancelLoad()
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("patients", len(data.Patients)).Int("doctors", len(data.Doctors)).Msg("data loaded")

	sim := newSimulator(cfg, data, logger)
	sim.Run()

	settleCtx, cancelSettle := context.WithTimeout(context.Background(), cfg.SettleTimeout)
	defer cancelSettle()
	outcome, err := sim.Settle(settleCtx, pgPool)
	if err != nil {
		logger.Error().Err(err).Msg("settle")
	}

	sim.PrintReport(outcome)
	if len(outcome.Overlaps) > 0 {
		os.Exit(1)
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.SlotCount <= 0 || cfg.DoctorLimit <= 0 {
		return fmt.Errorf("SIM_SLOTS and SIM_DOCTOR_LIMIT must be > 0")
	}
	if cfg.BookingRatio < 0 || cfg.BookingRatio > 1 {
		return fmt.Errorf("SIM_BOOKING_RATIO must be within [0,1]")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
