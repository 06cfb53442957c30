package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of caller roles. Adding one means touching every
// switch over Role, which is the point.
type Role string

const (
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
	RoleAdmin   Role = "ADMIN"
)

func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(raw))); r {
	case RoleDoctor, RolePatient, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

type Doctor struct {
	ID             uuid.UUID
	FirstName      string
	LastName       string
	Specialization string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Patient struct {
	ID         uuid.UUID
	FirstName  string
	LastName   string
	NationalID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// User is a login identity. Its doctor or patient profile is referenced by
// foreign key, never embedded.
type User struct {
	ID        uuid.UUID
	Username  string
	Role      Role
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}
