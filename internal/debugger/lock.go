package debugger

import (
	"sync"
	"sync/atomic"
)

// LockState is the lifecycle state of a DataLock.
type LockState int32

const (
	// LockActive is the normal state: every table operation must hold the lock.
	LockActive LockState = iota
	// LockShuttingDown marks process/session shutdown. The shutdown thread is
	// treated as implicitly holding the lock, so held-assertions are skipped.
	LockShuttingDown
	// LockDestroyed marks a lock whose registry has been torn down.
	LockDestroyed
)

// String returns the state name for diagnostics.
func (s LockState) String() string {
	switch s {
	case LockActive:
		return "active"
	case LockShuttingDown:
		return "shutting-down"
	case LockDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// DataLock is the debugger data lock: a single coarse lock guarding the module
// table. The table performs no locking of its own; callers acquire this lock
// around every operation, and the table asserts the discipline via AssertHeld.
//
// The lock carries an explicit lifecycle so that teardown can proceed without
// a live lock holder: once BeginShutdown moves it out of Active, AssertHeld
// becomes a no-op.
type DataLock struct {
	mu    sync.Mutex
	held  atomic.Bool
	state atomic.Int32
}

// NewDataLock creates a DataLock in the Active state.
func NewDataLock() *DataLock {
	return &DataLock{}
}

// Lock acquires the lock.
func (l *DataLock) Lock() {
	l.mu.Lock()
	l.held.Store(true)
}

// Unlock releases the lock.
func (l *DataLock) Unlock() {
	l.held.Store(false)
	l.mu.Unlock()
}

// AssertHeld panics if the lock is Active and nobody holds it. In the
// ShuttingDown and Destroyed states the check is skipped: no other thread can
// be observing the table at that point.
func (l *DataLock) AssertHeld() {
	if l.State() != LockActive {
		return
	}
	if !l.held.Load() {
		panic("debugger: data lock not held")
	}
}

// BeginShutdown moves the lock from Active to ShuttingDown. Calling it more
// than once, or after Destroy, has no effect.
func (l *DataLock) BeginShutdown() {
	l.state.CompareAndSwap(int32(LockActive), int32(LockShuttingDown))
}

// Destroy marks the lock destroyed. The lock must not be acquired afterward.
func (l *DataLock) Destroy() {
	l.state.Store(int32(LockDestroyed))
}

// State returns the current lifecycle state.
func (l *DataLock) State() LockState {
	return LockState(l.state.Load())
}
