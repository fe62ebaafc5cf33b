package jobs

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunCancelled is the cause recorded when a run is cancelled through the registry.
var ErrRunCancelled = errors.New("run cancelled")

// RunHandle tracks one in-process background run.
type RunHandle struct {
	ID        string
	Group     string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

// Context is cancelled when the run is cancelled or the registry parent ends.
func (h *RunHandle) Context() context.Context { return h.ctx }

// Done is closed once the run has finished.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// Err returns the run outcome. Only meaningful after Done is closed.
func (h *RunHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Registry owns handles of detached runs keyed by id.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*RunHandle
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*RunHandle)}
}

// Register creates a handle for id under group. Registering an id twice returns the existing handle.
func (r *Registry) Register(parent context.Context, id, group string) *RunHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.runs[id]; ok {
		return existing
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	handle := &RunHandle{
		ID:        id,
		Group:     group,
		StartedAt: time.Now().UTC(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.runs[id] = handle
	return handle
}

// Lookup returns the handle registered under id.
func (r *Registry) Lookup(id string) (*RunHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.runs[id]
	return h, ok
}

// Alive reports whether id is registered and not finished.
func (r *Registry) Alive(id string) bool {
	h, ok := r.Lookup(id)
	if !ok {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ByGroup lists live handles that belong to group.
func (r *Registry) ByGroup(group string) []*RunHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*RunHandle
	for _, h := range r.runs {
		if h.Group == group {
			out = append(out, h)
		}
	}
	return out
}

// Cancel signals the run to stop. It returns false when id is unknown.
func (r *Registry) Cancel(id string) bool {
	h, ok := r.Lookup(id)
	if !ok {
		return false
	}
	h.cancel(ErrRunCancelled)
	return true
}

// Finish records the outcome, releases the handle and removes it from the registry.
func (r *Registry) Finish(id string, err error) {
	r.mu.Lock()
	h, ok := r.runs[id]
	if ok {
		delete(r.runs, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	h.once.Do(func() {
		h.err = err
		close(h.done)
		h.cancel(nil)
	})
}

// Wait blocks until the run identified by id finishes or ctx ends.
// Unknown ids return immediately.
func (r *Registry) Wait(ctx context.Context, id string) error {
	h, ok := r.Lookup(id)
	if !ok {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return h.err
	}
}

// Len reports the number of registered runs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
