package appointment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLocalLocker_SerializesPerDoctor(t *testing.T) {
	l := NewLocalLocker()
	doctor := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.WithDoctorLock(context.Background(), doctor, func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected serial execution, saw %d concurrent", maxInside)
	}
	if len(l.locks) != 0 {
		t.Fatalf("lock entries leaked: %d", len(l.locks))
	}
}

func TestLocalLocker_DifferentDoctorsRunInParallel(t *testing.T) {
	l := NewLocalLocker()
	a, b := uuid.New(), uuid.New()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = l.WithDoctorLock(context.Background(), a, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		_ = l.WithDoctorLock(context.Background(), b, func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("doctor b blocked behind doctor a")
	}
	close(release)
}
