// Package spinlock provides the atomic-flag spin lock spec.md §4.5
// requires for CentralCache's per-size-class critical sections: an
// unconditional guard that acquires with a compare-and-swap loop,
// yielding the scheduler between failed attempts, and releases on scope
// exit regardless of how the critical section returns.
package spinlock

import (
	"runtime"
	"sync/atomic"
)

// Flag is a spin lock backed by a single atomic.Bool. Unlike sync.Mutex,
// a contended acquisition never parks the goroutine — it spins, yielding
// the scheduler via runtime.Gosched between attempts, matching spec.md
// §4.5 and §5's "spin flags do not block but do yield."
//
// The zero value is an unlocked Flag, ready to use.
type Flag struct {
	held atomic.Bool
}

// Lock blocks (by spinning) until the flag is acquired.
func (f *Flag) Lock() {
	for !f.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// TryLock attempts to acquire the flag without spinning, reporting
// whether it succeeded.
func (f *Flag) TryLock() bool {
	return f.held.CompareAndSwap(false, true)
}

// Unlock releases the flag. Unlock on an already-unlocked Flag is a
// programming error in the caller and will hand the lock to no one (the
// store simply reaffirms false), mirroring sync.Mutex's contract.
func (f *Flag) Unlock() {
	f.held.Store(false)
}

// Guard acquires the flag and returns a func that releases it, so callers
// can write `defer spin.Guard()()` and get an unconditional release on
// every exit path from the critical section — spec.md §4.5's "must be
// unconditional: the guard holds the flag for the entire critical section
// regardless of exceptional exits."
func (f *Flag) Guard() func() {
	f.Lock()
	return f.Unlock
}
