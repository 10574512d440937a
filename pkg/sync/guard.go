package sync

import "sync"

// RunGuard prevents concurrent duplicate runs of the same job type.
// State is process-local; a crashed process releases everything.
type RunGuard struct {
	mu      sync.Mutex
	running map[string]bool
}

// NewRunGuard creates an empty guard
func NewRunGuard() *RunGuard {
	return &RunGuard{running: make(map[string]bool)}
}

// TryAcquire marks jobType as running. It returns false when a run of
// the same type is already in flight; otherwise the returned release
// function must be called when the run finishes.
func (g *RunGuard) TryAcquire(jobType string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running[jobType] {
		return nil, false
	}
	g.running[jobType] = true
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.running, jobType)
	}, true
}
