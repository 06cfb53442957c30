package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/queue"
)

// Adjudicator moves PENDING appointments to CONFIRMED or REJECTED. The
// window check and the status write for one doctor run under that doctor's
// lock, and the write is conditional on the row still being PENDING.
type Adjudicator struct {
	repo    Repository
	locker  DoctorLocker
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewAdjudicator(repo Repository, locker DoctorLocker, m *metrics.Metrics, logger zerolog.Logger) *Adjudicator {
	return &Adjudicator{
		repo:    repo,
		locker:  locker,
		metrics: m,
		logger:  logger.With().Str("component", "adjudicator").Logger(),
	}
}

// Adjudicate decides a single appointment. Terminal appointments are
// returned unchanged, so redelivered ids are harmless.
func (a *Adjudicator) Adjudicate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := a.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment %s: %w", id, err)
	}
	if appt.Status.Terminal() {
		return appt, nil
	}

	var decided *Appointment
	err = a.locker.WithDoctorLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
		current, err := a.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return fmt.Errorf("reload appointment: %w", err)
		}
		if current.Status.Terminal() {
			decided = current
			return nil
		}

		lower, upper := ConflictWindow(current.AppointmentTime)
		conflicts, err := a.repo.FindConfirmedInWindow(lockCtx, current.DoctorID, lower, upper)
		if err != nil {
			return fmt.Errorf("check conflicts: %w", err)
		}

		next := StatusConfirmed
		if len(conflicts) > 0 {
			next = StatusRejected
		}

		updated, err := a.repo.UpdateAppointmentStatus(lockCtx, id, StatusPending, next)
		if errors.Is(err, ErrAppointmentNotFound) {
			// lost a race with another adjudication of the same id
			decided, err = a.repo.GetAppointmentByID(lockCtx, id)
			return err
		}
		if err != nil {
			return fmt.Errorf("set status %s: %w", next, err)
		}
		decided = updated

		payload := map[string]any{"doctor_id": current.DoctorID.String()}
		if len(conflicts) > 0 {
			payload["conflicts_with"] = conflicts[0].ID.String()
		}
		event := EventAppointmentConfirmed
		if next == StatusRejected {
			event = EventAppointmentRejected
		}
		logEvent(lockCtx, a.repo, a.logger, id, event, payload)
		a.metrics.Adjudicated(string(next))

		a.logger.Info().
			Str("appointment_id", id.String()).
			Str("doctor_id", current.DoctorID.String()).
			Time("appointment_time", current.AppointmentTime).
			Str("status", string(next)).
			Msg("appointment adjudicated")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}

// Handle is the queue.Handler for the adjudication queue. A vanished
// appointment is logged and acknowledged so it cannot block the partition;
// anything else is returned for retry.
func (a *Adjudicator) Handle(ctx context.Context, msg queue.Message) error {
	_, err := a.Adjudicate(ctx, msg.AppointmentID)
	if errors.Is(err, ErrAppointmentNotFound) {
		a.metrics.Adjudicated("NOT_FOUND")
		a.logger.Error().
			Str("appointment_id", msg.AppointmentID.String()).
			Str("doctor_id", msg.DoctorID.String()).
			Msg("queued appointment does not exist")
		return nil
	}
	return err
}
