package orchestrator

import "sync"

// Tracker marks cross-reference runs in flight so a second request against
// the same job is rejected instead of queued twice. The worker releases
// the slot when the stage finishes, successfully or not.
type Tracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{running: make(map[string]struct{})}
}

// TryAcquire reserves the job's slot. It reports false when a run is
// already in flight.
func (t *Tracker) TryAcquire(jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[jobID]; ok {
		return false
	}
	t.running[jobID] = struct{}{}
	return true
}

// Release frees the job's slot. Releasing an unheld slot is a no-op.
func (t *Tracker) Release(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.running, jobID)
}
