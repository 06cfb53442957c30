package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process Directory used by tests and the
// single-process dev mode.
type MemoryDirectory struct {
	mu       sync.RWMutex
	doctors  map[uuid.UUID]Doctor
	patients map[uuid.UUID]Patient
	users    map[string]User

	// batch call counters, used to assert joins stay batched
	DoctorBatchCalls  int
	PatientBatchCalls int
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		doctors:  make(map[uuid.UUID]Doctor),
		patients: make(map[uuid.UUID]Patient),
		users:    make(map[string]User),
	}
}

var (
	_ Directory = (*MemoryDirectory)(nil)
	_ Registrar = (*MemoryDirectory)(nil)
)

// AddDoctor registers a doctor and a DOCTOR user linked to it.
func (m *MemoryDirectory) AddDoctor(first, last, specialization, username string) Doctor {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	d := Doctor{ID: uuid.New(), FirstName: first, LastName: last, Specialization: specialization, CreatedAt: now, UpdatedAt: now}
	m.doctors[d.ID] = d
	id := d.ID
	m.users[username] = User{ID: uuid.New(), Username: username, Role: RoleDoctor, DoctorID: &id, CreatedAt: now, UpdatedAt: now}
	return d
}

// AddPatient registers a patient and a PATIENT user linked to it.
func (m *MemoryDirectory) AddPatient(first, last, nationalID, username string) Patient {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	p := Patient{ID: uuid.New(), FirstName: first, LastName: last, NationalID: nationalID, CreatedAt: now, UpdatedAt: now}
	m.patients[p.ID] = p
	id := p.ID
	m.users[username] = User{ID: uuid.New(), Username: username, Role: RolePatient, PatientID: &id, CreatedAt: now, UpdatedAt: now}
	return p
}

func (m *MemoryDirectory) CreateDoctor(_ context.Context, doc Doctor, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.users[username]; taken {
		return fmt.Errorf("user %s: %w", username, ErrAlreadyExists)
	}
	now := time.Now().UTC()
	doc.CreatedAt, doc.UpdatedAt = now, now
	m.doctors[doc.ID] = doc
	id := doc.ID
	m.users[username] = User{ID: uuid.New(), Username: username, Role: RoleDoctor, DoctorID: &id, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (m *MemoryDirectory) CreatePatient(_ context.Context, p Patient, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.users[username]; taken {
		return fmt.Errorf("user %s: %w", username, ErrAlreadyExists)
	}
	for _, existing := range m.patients {
		if existing.NationalID == p.NationalID {
			return fmt.Errorf("national id: %w", ErrAlreadyExists)
		}
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	m.patients[p.ID] = p
	id := p.ID
	m.users[username] = User{ID: uuid.New(), Username: username, Role: RolePatient, PatientID: &id, CreatedAt: now, UpdatedAt: now}
	return nil
}

// AddUser stores a user as-is, links included.
func (m *MemoryDirectory) AddUser(u User) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.Username] = u
	return u
}

func (m *MemoryDirectory) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *MemoryDirectory) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryDirectory) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *MemoryDirectory) DoctorsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DoctorBatchCalls++
	out := make(map[uuid.UUID]Doctor, len(ids))
	for _, id := range ids {
		if d, ok := m.doctors[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (m *MemoryDirectory) PatientsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PatientBatchCalls++
	out := make(map[uuid.UUID]Patient, len(ids))
	for _, id := range ids {
		if p, ok := m.patients[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MemoryDirectory) ListDoctors(_ context.Context) ([]Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Doctor, 0, len(m.doctors))
	for _, d := range m.doctors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}
