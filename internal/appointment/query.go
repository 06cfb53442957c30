package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/identity"
)

// visibilityFor maps a caller to the slice of the appointment table they
// may see. A role outside the known set is an error, never a default.
func visibilityFor(caller identity.User) (Filter, error) {
	switch caller.Role {
	case identity.RoleDoctor:
		if caller.DoctorID == nil {
			return Filter{}, fmt.Errorf("%w: doctor user %q", ErrIdentityMismatch, caller.Username)
		}
		id := *caller.DoctorID
		return Filter{DoctorID: &id}, nil
	case identity.RolePatient:
		if caller.PatientID == nil {
			return Filter{}, fmt.Errorf("%w: patient user %q", ErrIdentityMismatch, caller.Username)
		}
		id := *caller.PatientID
		return Filter{PatientID: &id}, nil
	case identity.RoleAdmin:
		return Filter{}, nil
	default:
		return Filter{}, fmt.Errorf("%w: %q", identity.ErrUnknownRole, caller.Role)
	}
}

// ListAppointments returns what caller may see, optionally narrowed by
// status, with doctor and patient joined in two batched lookups.
func (s *Service) ListAppointments(ctx context.Context, caller identity.User, status *Status) ([]AppointmentView, error) {
	f, err := visibilityFor(caller)
	if err != nil {
		return nil, err
	}
	f.Status = status

	appts, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if len(appts) == 0 {
		return []AppointmentView{}, nil
	}

	doctorIDs, patientIDs := peerIDs(appts)

	doctors, err := s.directory.DoctorsByIDs(ctx, doctorIDs)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	patients, err := s.directory.PatientsByIDs(ctx, patientIDs)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	views := make([]AppointmentView, 0, len(appts))
	for _, a := range appts {
		d, ok := doctors[a.DoctorID]
		if !ok {
			s.logger.Warn().Str("appointment_id", a.ID.String()).Str("doctor_id", a.DoctorID.String()).Msg("appointment references missing doctor")
			d = identity.Doctor{ID: a.DoctorID}
		}
		p, ok := patients[a.PatientID]
		if !ok {
			s.logger.Warn().Str("appointment_id", a.ID.String()).Str("patient_id", a.PatientID.String()).Msg("appointment references missing patient")
			p = identity.Patient{ID: a.PatientID}
		}
		views = append(views, AppointmentView{Appointment: a, Doctor: d, Patient: p})
	}
	return views, nil
}

func peerIDs(appts []Appointment) (doctors, patients []uuid.UUID) {
	seenD := make(map[uuid.UUID]struct{})
	seenP := make(map[uuid.UUID]struct{})
	for _, a := range appts {
		if _, ok := seenD[a.DoctorID]; !ok {
			seenD[a.DoctorID] = struct{}{}
			doctors = append(doctors, a.DoctorID)
		}
		if _, ok := seenP[a.PatientID]; !ok {
			seenP[a.PatientID] = struct{}{}
			patients = append(patients, a.PatientID)
		}
	}
	return doctors, patients
}

// DoctorAvailability lists the confirmed, therefore taken, times of a doctor.
func (s *Service) DoctorAvailability(ctx context.Context, doctorID uuid.UUID) ([]BookedSlot, error) {
	if _, err := s.directory.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, identity.ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	confirmed := StatusConfirmed
	appts, err := s.repo.ListAppointments(ctx, Filter{DoctorID: &doctorID, Status: &confirmed})
	if err != nil {
		return nil, fmt.Errorf("list confirmed appointments: %w", err)
	}

	slots := make([]BookedSlot, 0, len(appts))
	for _, a := range appts {
		slots = append(slots, BookedSlot{AppointmentTime: a.AppointmentTime})
	}
	return slots, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]identity.Doctor, error) {
	doctors, err := s.directory.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}
