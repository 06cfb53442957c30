package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/identity"
)

// Status literals are persisted and sent over the wire verbatim.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
)

func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusPending, StatusConfirmed, StatusRejected:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

type Appointment struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	AppointmentTime time.Time
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Filter narrows a scan of the appointment table. Nil fields match everything.
type Filter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    *Status
}

func (f Filter) Matches(a Appointment) bool {
	if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
		return false
	}
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	return true
}

// AppointmentView is an appointment joined with its doctor and patient.
type AppointmentView struct {
	Appointment
	Doctor  identity.Doctor
	Patient identity.Patient
}

type BookedSlot struct {
	AppointmentTime time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
