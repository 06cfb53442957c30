package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/queue"
)

const (
	EventAppointmentRequested   = "APPOINTMENT_REQUESTED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentRejected    = "APPOINTMENT_REJECTED"
	EventAppointmentRepublished = "APPOINTMENT_REPUBLISHED"
)

// Service is the booking side: it accepts requests and answers role-scoped
// reads. It never decides CONFIRMED or REJECTED itself.
type Service struct {
	repo      Repository
	directory identity.Directory
	publisher queue.Publisher
	loc       *time.Location
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewService(repo Repository, directory identity.Directory, publisher queue.Publisher, loc *time.Location, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:      repo,
		directory: directory,
		publisher: publisher,
		loc:       loc,
		metrics:   m,
		logger:    logger.With().Str("component", "booking").Logger(),
	}
}

// Location is the clinic timezone slot rules are evaluated in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Submit records a PENDING appointment for the caller's patient profile and
// hands its id to the adjudication queue. A failed publish is logged and the
// appointment is still returned; the reconciler re-drives it later.
func (s *Service) Submit(ctx context.Context, caller identity.User, doctorID uuid.UUID, at time.Time) (*Appointment, error) {
	if err := ValidateSlot(at, s.loc); err != nil {
		return nil, err
	}

	if _, err := s.directory.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, identity.ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	if caller.PatientID == nil {
		return nil, ErrIdentityMismatch
	}
	patient, err := s.directory.GetPatientByID(ctx, *caller.PatientID)
	if err != nil {
		if errors.Is(err, identity.ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	appt, err := s.repo.CreatePendingAppointment(ctx, doctorID, patient.ID, at.UTC())
	if err != nil {
		return nil, fmt.Errorf("create pending appointment: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventAppointmentRequested, map[string]any{
		"doctor_id":        doctorID.String(),
		"patient_id":       patient.ID.String(),
		"appointment_time": appt.AppointmentTime,
	})

	if err := s.publisher.Publish(ctx, queue.Message{AppointmentID: appt.ID, DoctorID: doctorID}); err != nil {
		s.metrics.PublishFailed()
		s.logger.Error().Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("doctor_id", doctorID.String()).
			Msg("publish to adjudication queue failed, appointment left pending")
	}

	return appt, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	logEvent(ctx, s.repo, s.logger, appointmentID, eventType, payload)
}

func logEvent(ctx context.Context, repo Repository, logger zerolog.Logger, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now().UTC(),
	}

	if err := repo.InsertEvent(ctx, ev); err != nil {
		logger.Warn().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}
