package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUnknownRole     = errors.New("unknown role")
	ErrAlreadyExists   = errors.New("identity already exists")
)

// Directory is the read side of the identity store.
type Directory interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// Batched lookups for read-side joins. Unknown ids are simply absent
	// from the returned map.
	DoctorsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Doctor, error)
	PatientsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Patient, error)

	ListDoctors(ctx context.Context) ([]Doctor, error)
}

// Registrar is the write side. Both calls create the profile and its linked
// user together and return ErrAlreadyExists when the username or a unique
// profile field is taken.
type Registrar interface {
	CreateDoctor(ctx context.Context, doc Doctor, username string) error
	CreatePatient(ctx context.Context, p Patient, username string) error
}
