//go:build !unix && !windows

package osmem

import (
	"sync"
	"unsafe"
)

// pinned keeps fallback-path allocations reachable so the garbage
// collector never reclaims memory a caller still holds the address of.
// Platforms without mmap/VirtualAlloc are not a target for this
// allocator's concurrency model (spec.md §6); this path exists only so
// the module still builds and behaves correctly there.
var pinned sync.Map // uintptr -> []byte

// rawAlloc backs pages with a plain Go heap allocation on platforms with
// neither mmap nor VirtualAlloc.
func rawAlloc(nBytes int) (uintptr, []byte, error) {
	buf := make([]byte, nBytes)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	pinned.Store(addr, buf)
	return addr, buf, nil
}

// rawFree drops the pin, allowing the garbage collector to reclaim the
// backing array.
func rawFree(addr uintptr, _ []byte) error {
	pinned.Delete(addr)
	return nil
}
