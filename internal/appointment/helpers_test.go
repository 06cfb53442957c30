package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/queue"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg queue.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) sent() []queue.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.Message(nil), p.msgs...)
}

type fixture struct {
	repo     *MemoryRepository
	dir      *identity.MemoryDirectory
	pub      *recordingPublisher
	svc      *Service
	adj      *Adjudicator
	metrics  *metrics.Metrics
	doctor   identity.Doctor
	patient  identity.Patient
	patientU identity.User
	doctorU  identity.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repo := NewMemoryRepository()
	dir := identity.NewMemoryDirectory()
	pub := &recordingPublisher{}

	f := &fixture{
		repo:     repo,
		dir:      dir,
		pub:      pub,
		metrics:  m,
		svc:      NewService(repo, dir, pub, time.UTC, m, zerolog.Nop()),
		adj:      NewAdjudicator(repo, NewLocalLocker(), m, zerolog.Nop()),
	}
	f.doctor = dir.AddDoctor("Greg", "House", "Diagnostics", "house")
	f.patient = dir.AddPatient("Lisa", "Cuddy", "10000000001", "cuddy")
	f.patientU = mustUser(t, dir, "cuddy")
	f.doctorU = mustUser(t, dir, "house")
	return f
}

func mustUser(t *testing.T, dir identity.Directory, username string) identity.User {
	t.Helper()
	u, err := dir.GetUserByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("load user %s: %v", username, err)
	}
	return *u
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 1, 1, hour, minute, 0, 0, time.UTC)
}

// pending inserts a PENDING row directly, bypassing slot validation.
func (f *fixture) pending(t *testing.T, doctorID uuid.UUID, when time.Time) *Appointment {
	t.Helper()
	a, err := f.repo.CreatePendingAppointment(context.Background(), doctorID, f.patient.ID, when)
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	return a
}

func (f *fixture) confirmed(t *testing.T, doctorID uuid.UUID, when time.Time) *Appointment {
	t.Helper()
	a := f.pending(t, doctorID, when)
	got, err := f.adj.Adjudicate(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("adjudicate: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Fatalf("setup: expected CONFIRMED, got %s", got.Status)
	}
	return got
}
