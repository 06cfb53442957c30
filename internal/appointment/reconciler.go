package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/queue"
)

const defaultSweepBatch = 100

// Reconciler re-publishes appointments that have sat in PENDING too long,
// typically because the original publish failed.
type Reconciler struct {
	repo       Repository
	publisher  queue.Publisher
	staleAfter time.Duration
	batch      int
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

func NewReconciler(repo Repository, publisher queue.Publisher, staleAfter time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		repo:       repo,
		publisher:  publisher,
		staleAfter: staleAfter,
		batch:      defaultSweepBatch,
		metrics:    m,
		logger:     logger.With().Str("component", "reconciler").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Sweep runs one pass and returns how many ids it re-published.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	stale, err := r.repo.FindStalePending(ctx, r.now().Add(-r.staleAfter), r.batch)
	if err != nil {
		return 0, fmt.Errorf("find stale pending: %w", err)
	}

	republished := 0
	for _, appt := range stale {
		if err := r.publisher.Publish(ctx, queue.Message{AppointmentID: appt.ID, DoctorID: appt.DoctorID}); err != nil {
			r.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("re-publish failed")
			continue
		}
		if err := r.repo.TouchPending(ctx, appt.ID); err != nil {
			r.logger.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("touch pending")
		}
		logEvent(ctx, r.repo, r.logger, appt.ID, EventAppointmentRepublished, map[string]any{
			"pending_since": appt.CreatedAt,
		})
		republished++
	}

	r.metrics.Republished(republished)
	if republished > 0 {
		r.logger.Info().Int("count", republished).Msg("re-published stale pending appointments")
	}
	return republished, nil
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil {
			r.logger.Error().Err(err).Msg("reconcile sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
