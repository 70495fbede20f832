// Package threadcache implements the ThreadCache tier: a per-affinity
// slot cache of free blocks that absorbs the common case without ever
// touching CentralCache's spin locks (spec.md §4.2).
//
// Go exposes no OS-thread handle to user code, so "one ThreadCache per
// live OS thread" is realized as one *Local per sync.Pool-obtained
// affinity slot (see Acquire/Release). This is documented as an
// explicit resolution of spec.md's open question, not a silent
// deviation.
package threadcache

import (
	"runtime"
	"sync"

	"github.com/coreallox/memfab/internal/centralcache"
	"github.com/coreallox/memfab/internal/freelist"
	"github.com/coreallox/memfab/internal/sizeclass"
	"github.com/coreallox/memfab/internal/xlog"
)

// minBatchCount is the batch-count schedule's starting point
// (spec.md §4.2 "a batch count from next_batch_count (minimum 16...)").
const minBatchCount = 16

// classList is one size class's per-thread state (spec.md §3 "the
// free-list head, its length, and a counter next_batch_count").
type classList struct {
	head           uintptr
	length         int32
	nextBatchCount int32
}

// Local is one thread's (affinity slot's) view of the cache: one
// classList per size class.
type Local struct {
	classes [sizeclass.NumClasses]classList
	central *centralcache.Cache
}

func newLocal(central *centralcache.Cache) *Local {
	l := &Local{central: central}
	for i := range l.classes {
		l.classes[i].nextBatchCount = minBatchCount
	}
	runtime.SetFinalizer(l, (*Local).flushAll)
	return l
}

var pool = sync.Pool{New: func() any { return newLocal(centralcache.Global) }}

// Acquire obtains a *Local for the calling goroutine's use. Callers must
// call Release when done with it (typically via defer), which returns
// the slot to the pool for reuse by another goroutine — the Go-native
// analogue of a thread giving up its cache slot.
func Acquire() *Local {
	return pool.Get().(*Local)
}

// Release returns l to the affinity pool.
func Release(l *Local) {
	pool.Put(l)
}

// Allocate serves one block of n bytes (spec.md §4.2 Allocate). Zero
// returns ok=false with no side effects. Sizes above
// sizeclass.MaxCacheable bypass the cache and go straight to
// CentralCache's large-block path.
func (l *Local) Allocate(n int) (uintptr, bool) {
	if n <= 0 {
		return 0, false
	}
	size := sizeclass.Of(int32(n))
	if size > sizeclass.MaxCacheable {
		return l.central.AllocateLarge(n)
	}

	classIdx := sizeclass.IndexOf(size)
	cl := &l.classes[classIdx]

	if cl.length > 0 {
		return l.popFast(cl), true
	}
	return l.refill(classIdx, cl, size)
}

// Deallocate returns a block of n bytes obtained from Allocate
// (spec.md §4.2 Deallocate). Zero address or size is a no-op.
func (l *Local) Deallocate(addr uintptr, n int) {
	if addr == 0 || n <= 0 {
		return
	}
	size := sizeclass.Of(int32(n))
	if size > sizeclass.MaxCacheable {
		l.central.DeallocateLarge(addr)
		return
	}

	classIdx := sizeclass.IndexOf(size)
	cl := &l.classes[classIdx]

	freelist.Push(addr, cl.head)
	cl.head = addr
	cl.length++

	if int64(cl.length)*int64(size) > sizeclass.MaxFreeBytesPerList {
		l.flushHalf(classIdx, cl, size)
	}
}

// popFast pops the head of cl's free list.
func (l *Local) popFast(cl *classList) uintptr {
	head := cl.head
	cl.head = freelist.Pop(head)
	cl.length--
	return head
}

// refill requests a batch from CentralCache, retains the head, and
// splices the remainder onto the free list (spec.md §4.2 Refill).
func (l *Local) refill(classIdx int, cl *classList, size int32) (uintptr, bool) {
	batchCount := floorBatch(cl.nextBatchCount)
	head, ok := l.central.Allocate(classIdx, batchCount)
	if !ok {
		return 0, false
	}

	// Retain head as the single block returned to the caller; the rest
	// of the batch is spliced onto the front of this class's free list.
	// Termination is defensive: the walk to find the batch's tail stops
	// at the first null or after batchCount nodes, whichever comes
	// first (spec.md §4.2 Refill), guarding against a malformed tail
	// from CentralCache.
	remainderHead := freelist.Pop(head)
	if remainderHead != 0 {
		tail := head
		visited := int32(1)
		for visited < batchCount {
			next := freelist.Pop(tail)
			if next == 0 {
				break
			}
			tail = next
			visited++
		}
		freelist.Push(tail, cl.head)
		cl.head = remainderHead
		cl.length += batchCount - 1
	}

	cl.nextBatchCount = nextBatch(batchCount, size)
	return head, true
}

// flushHalf severs half of cl's free list and hands it to CentralCache
// (spec.md §4.2 Deallocate's flush trigger).
func (l *Local) flushHalf(classIdx int, cl *classList, size int32) {
	hops := cl.length/2 - 1
	tail := cl.head
	for i := int32(0); i < hops; i++ {
		next := freelist.Pop(tail)
		if next == 0 {
			xlog.Fatal("threadcache: flush traversal hit null before expected hop count", "class", classIdx, "hop", i, "expectedHops", hops)
		}
		tail = next
	}

	released := freelist.Pop(tail)
	freelist.Push(tail, 0)

	// The first floor(length/2) blocks (cl.head through tail, now
	// terminated) go back to CentralCache; the remainder becomes the new
	// head, keeping cl.length in agreement with what's actually on the
	// list for both parities of the original length.
	freed := cl.head
	cl.head = released
	cl.length -= cl.length / 2

	l.central.Deallocate(classIdx, freed)
	cl.nextBatchCount = halveBatch(cl.nextBatchCount)
}

// flushAll hands every residual block in every class back to
// CentralCache. Installed as l's finalizer: when a *Local becomes
// unreachable (its affinity slot's goroutine is gone and sync.Pool has
// dropped it), this is the "thread death hands residual blocks back"
// step spec.md's design notes call for.
func (l *Local) flushAll() {
	for classIdx := range l.classes {
		cl := &l.classes[classIdx]
		if cl.head == 0 {
			continue
		}
		l.central.Deallocate(classIdx, cl.head)
		cl.head = 0
		cl.length = 0
	}
}

// batchCeiling returns the class-dependent ceiling on nextBatchCount
// (spec.md §4.2, cap (a)).
func batchCeiling(size int32) int32 {
	switch {
	case size <= 128:
		return 256
	case size <= 1024:
		return 128
	default:
		return 64
	}
}

// floorBatch enforces the minBatchCount floor spec.md §4.2 requires of
// every batch count actually requested from CentralCache, regardless of
// how far fast-recycle halving has driven nextBatchCount down.
func floorBatch(n int32) int32 {
	if n < minBatchCount {
		return minBatchCount
	}
	return n
}

// nextBatch computes the next stored batch count: doubled from a
// minBatchCount-floored base, then capped by all three limits in
// spec.md §4.2, and never allowed back below minBatchCount itself.
func nextBatch(current int32, size int32) int32 {
	next := floorBatch(current) * 2

	if c := batchCeiling(size); next > c {
		next = c
	}
	if c := sizeclass.MaxFreeBytesPerList / size / 2; next > c {
		next = c
	}
	if next > sizeclass.MaxUnitCount {
		next = sizeclass.MaxUnitCount
	}
	return floorBatch(next)
}

// halveBatch is the fast-recycle signal for a class's batch schedule
// (spec.md §4.2, floor 4).
func halveBatch(n int32) int32 {
	n /= 2
	if n < 4 {
		return 4
	}
	return n
}
