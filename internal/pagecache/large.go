package pagecache

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/coreallox/memfab/internal/xlog"
)

// largeBlocks pins every outstanding large-block (> sizeclass.MaxCacheable)
// allocation's backing array so the garbage collector cannot reclaim
// memory a caller still addresses by raw uintptr. spec.md's design notes
// leave the large-block path's OS-vs-heap boundary as an open question;
// DESIGN.md records the resolution taken here: unlike AllocatePage, a
// large block is backed by an ordinary Go heap allocation rather than a
// direct OS mapping, so it participates in GC-driven memory pressure
// handling instead of competing with the page fabric for OS mappings.
var largeBlocks sync.Map // uintptr -> []byte

var largeBlockBytes atomic.Int64

// AllocateUnit serves a single allocation of size bytes outside the
// size-classed fabric (spec.md §4.4 AllocateUnit, the ">32KiB path").
// The returned address is pinned until the matching DeallocateUnit call.
func (c *Cache) AllocateUnit(size int) (uintptr, bool) {
	if size <= 0 {
		return 0, false
	}
	buf := make([]byte, size)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	largeBlocks.Store(addr, buf)
	largeBlockBytes.Add(int64(size))
	return addr, true
}

// DeallocateUnit releases a block obtained from AllocateUnit
// (spec.md §4.4 DeallocateUnit). Deallocating an address AllocateUnit
// never returned is an invariant violation.
func (c *Cache) DeallocateUnit(addr uintptr) {
	buf, ok := largeBlocks.LoadAndDelete(addr)
	if !ok {
		xlog.Fatal("pagecache: DeallocateUnit on an address not tracked as a large block", "addr", addr)
	}
	largeBlockBytes.Add(-int64(len(buf.([]byte))))
}

// LargeBlockBytes reports the total bytes currently outstanding on the
// large-block path, for introspection (memfab.Stats).
func LargeBlockBytes() int64 {
	return largeBlockBytes.Load()
}
