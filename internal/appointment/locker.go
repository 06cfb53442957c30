package appointment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// DoctorLocker serializes the adjudication critical section per doctor.
type DoctorLocker interface {
	WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error
}

// LocalLocker is a process-local DoctorLocker. It is only correct when a
// single process adjudicates.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*doctorMutex
}

type doctorMutex struct {
	mu   sync.Mutex
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[uuid.UUID]*doctorMutex)}
}

func (l *LocalLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	dm, ok := l.locks[doctorID]
	if !ok {
		dm = &doctorMutex{}
		l.locks[doctorID] = dm
	}
	dm.refs++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		dm.refs--
		if dm.refs == 0 {
			delete(l.locks, doctorID)
		}
		l.mu.Unlock()
	}()

	dm.mu.Lock()
	defer dm.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
