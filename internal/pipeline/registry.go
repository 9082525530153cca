package pipeline

import (
	"context"
	"sync"
)

// Registry tracks the cancel functions of in-flight scans so the API can
// cancel a running scan by ID.
type Registry struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]context.CancelFunc)}
}

// begin derives a cancellable context for the scan and registers it. The
// returned release must be called when the scan finishes.
func (r *Registry) begin(parent context.Context, scanID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	r.active[scanID] = cancel
	r.mu.Unlock()
	return ctx, func() {
		r.mu.Lock()
		delete(r.active, scanID)
		r.mu.Unlock()
		cancel()
	}
}

// Cancel aborts a running scan. It reports whether the scan was active.
func (r *Registry) Cancel(scanID string) bool {
	r.mu.Lock()
	cancel, ok := r.active[scanID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}
