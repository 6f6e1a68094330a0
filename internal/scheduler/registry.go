package scheduler

import (
	"sync"
	"time"
)

// Registry is the active-task set: the mutual-exclusion primitive that keeps
// a user from having two concurrent automation runs. All methods are safe
// for concurrent use.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]time.Time)}
}

// TryReserve atomically claims a slot for the user. It returns false when a
// run is already in flight.
func (r *Registry) TryReserve(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, active := r.tasks[id]; active {
		return false
	}
	r.tasks[id] = time.Now().UTC()
	return true
}

// Release frees the user's slot. Releasing an unreserved id is a no-op.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// Active reports whether the user currently holds a slot.
func (r *Registry) Active(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, active := r.tasks[id]
	return active
}

// Len returns the number of in-flight runs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Snapshot returns a copy of the active set for monitoring endpoints.
func (r *Registry) Snapshot() map[string]time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]time.Time, len(r.tasks))
	for id, started := range r.tasks {
		out[id] = started
	}
	return out
}
