package queue

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"
)

// MemoryQueue is an in-process queue partitioned by doctor id. Each
// partition is drained by one goroutine, so one doctor's ids are handled
// serially while different doctors proceed in parallel.
type MemoryQueue struct {
	partitions []chan Message
	policy     RetryPolicy
	logger     zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(partitions, buffer int, policy RetryPolicy, logger zerolog.Logger) *MemoryQueue {
	if partitions <= 0 {
		partitions = 1
	}
	q := &MemoryQueue{
		partitions: make([]chan Message, partitions),
		policy:     policy,
		logger:     logger.With().Str("component", "memory-queue").Logger(),
	}
	for i := range q.partitions {
		q.partitions[i] = make(chan Message, buffer)
	}
	return q
}

var (
	_ Publisher = (*MemoryQueue)(nil)
	_ Consumer  = (*MemoryQueue)(nil)
)

func (q *MemoryQueue) partitionFor(msg Message) int {
	h := fnv.New32a()
	_, _ = h.Write(msg.DoctorID[:])
	return int(h.Sum32() % uint32(len(q.partitions)))
}

// Publish never waits for a consumer. A full partition returns ErrQueueFull
// and the caller leaves the appointment for the reconciler.
func (q *MemoryQueue) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.partitions[q.partitionFor(msg)] <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Run(ctx context.Context, h Handler) error {
	var wg sync.WaitGroup
	for i, ch := range q.partitions {
		wg.Add(1)
		go func(partition int, ch <-chan Message) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					_ = handleWithRetry(ctx, h, msg, q.policy, q.logger.With().Int("partition", partition).Logger())
				}
			}
		}(i, ch)
	}
	wg.Wait()
	return nil
}

// Close stops accepting messages and lets Run drain what is buffered.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for _, ch := range q.partitions {
		close(ch)
	}
}
