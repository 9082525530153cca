package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ScanJob is one queued scan request.
type ScanJob struct {
	ScanID string
}

// Queue hands scan jobs from the API to the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, job ScanJob) error
	Dequeue(ctx context.Context) (ScanJob, error)
	Close()
}

// MemoryQueue is a bounded in-memory queue with context-aware operations.
type MemoryQueue struct {
	ch      chan ScanJob
	closeMu sync.Mutex
	closed  bool
}

// NewMemoryQueue constructs a queue with the provided capacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &MemoryQueue{ch: make(chan ScanJob, capacity)}
}

// Enqueue pushes a job or returns once the context ends.
func (q *MemoryQueue) Enqueue(ctx context.Context, job ScanJob) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- job:
		return nil
	}
}

// Dequeue pops the next job, respecting context cancellation.
func (q *MemoryQueue) Dequeue(ctx context.Context) (ScanJob, error) {
	select {
	case <-ctx.Done():
		return ScanJob{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job, ok := <-q.ch:
		if !ok {
			return ScanJob{}, errors.New("queue closed")
		}
		return job, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *MemoryQueue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
