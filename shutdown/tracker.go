// Package shutdown provides graceful-shutdown coordination: an operation
// tracker for in-flight builds, a priority-ordered cleanup registry, and
// signal handling with a force-exit escalation.
package shutdown

import (
	"errors"
	"sync"
	"time"
)

// ErrTrackerClosed is returned when starting an operation on a closed
// tracker.
var ErrTrackerClosed = errors.New("shutdown: operation tracker is closed")

// ErrWaitTimeout is returned when Wait times out before all operations
// complete.
var ErrWaitTimeout = errors.New("shutdown: operations did not complete in time")

// OperationTracker tracks in-flight operations so shutdown can wait for
// running builds instead of truncating them.
type OperationTracker struct {
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active int64
	closed bool
}

// NewOperationTracker creates an OperationTracker.
func NewOperationTracker() *OperationTracker {
	return &OperationTracker{}
}

// Start registers a new operation. Returns false once the tracker is
// closed, signalling the caller to reject the request.
func (t *OperationTracker) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}

	t.active++
	t.wg.Add(1)
	return true
}

// Done marks one operation complete. Must pair with a successful Start.
func (t *OperationTracker) Done() {
	t.mu.Lock()
	t.active--
	t.mu.Unlock()
	t.wg.Done()
}

// Active returns the number of in-flight operations.
func (t *OperationTracker) Active() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// Close stops accepting new operations. In-flight operations continue.
func (t *OperationTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// IsClosed reports whether the tracker has been closed.
func (t *OperationTracker) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// Wait blocks until all in-flight operations finish or the timeout
// elapses. A zero timeout waits forever.
func (t *OperationTracker) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return nil
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrWaitTimeout
	}
}
