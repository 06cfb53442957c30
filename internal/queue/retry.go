package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy bounds how often a failing handler is re-invoked before the
// message is given up on. Given-up ids stay PENDING for the reconciler.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 200 * time.Millisecond}

func handleWithRetry(ctx context.Context, h Handler, msg Message, policy RetryPolicy, logger zerolog.Logger) error {
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = h(ctx, msg); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn().Err(err).
			Str("appointment_id", msg.AppointmentID.String()).
			Int("attempt", i).
			Msg("adjudication attempt failed")

		if i < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Backoff * time.Duration(i)):
			}
		}
	}

	logger.Error().Err(err).
		Str("appointment_id", msg.AppointmentID.String()).
		Msg("giving up on message, appointment stays pending until reconciled")
	return err
}
