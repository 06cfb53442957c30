package redisclient

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLockKeyIsPerDoctor(t *testing.T) {
	id := uuid.MustParse("5f1b6c2e-8d1e-4a57-9f0a-6f3c2b1d0e99")
	if got := lockKey(id); got != "lock:doctor:5f1b6c2e-8d1e-4a57-9f0a-6f3c2b1d0e99" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNextDelayIsCapped(t *testing.T) {
	d := minRetryDelay
	for i := 0; i < 10; i++ {
		d = nextDelay(d)
	}
	if d != maxRetryDelay {
		t.Fatalf("expected cap %s, got %s", maxRetryDelay, d)
	}
	if nextDelay(10*time.Millisecond) != 20*time.Millisecond {
		t.Fatalf("expected doubling")
	}
}
