package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrUnknownStatus       = errors.New("unknown appointment status")
	ErrIdentityMismatch    = errors.New("caller has no linked profile for this role")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Creation and updates
	CreatePendingAppointment(ctx context.Context, doctorID, patientID uuid.UUID, at time.Time) (*Appointment, error)
	// UpdateAppointmentStatus only applies when the row is currently in from;
	// otherwise it returns ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks. Both bounds are exclusive.
	FindConfirmedInWindow(ctx context.Context, doctorID uuid.UUID, lower, upper time.Time) ([]Appointment, error)

	// Read side, ordered by appointment time
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)

	// Reconciler
	FindStalePending(ctx context.Context, updatedBefore time.Time, limit int) ([]Appointment, error)
	TouchPending(ctx context.Context, id uuid.UUID) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
