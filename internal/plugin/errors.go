package plugin

import "sync"

// ErrorTracker records, per module id, the last hook error the container
// saw. The transform pipeline consults it to re-throw a cached error
// during the same invalidation generation instead of re-running plugins
// that are known to fail, so a later retry is possible without
// restarting the server. A file-system change clears the entry via
// Clear.
type ErrorTracker struct {
	mu     sync.Mutex
	errors map[string]error
}

// NewErrorTracker returns an empty tracker.
func NewErrorTracker() *ErrorTracker {
	return &ErrorTracker{errors: make(map[string]error)}
}

// Mark records err as the last known failure for id.
func (t *ErrorTracker) Mark(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors[id] = err
}

// Get returns the cached error for id, if any.
func (t *ErrorTracker) Get(id string) (error, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	err, ok := t.errors[id]
	return err, ok
}

// Clear drops the cached error for id, allowing the next request to
// retry the pipeline.
func (t *ErrorTracker) Clear(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.errors, id)
}
