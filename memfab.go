package memfab

import "github.com/coreallox/memfab/internal/threadcache"

// Allocate returns the address of a freshly allocated block of at least
// size bytes, or ok=false if size is not positive or the operating
// system refused to provide backing pages (spec.md §6/§7).
//
// The returned address is aligned to the platform pointer size for
// cacheable sizes (≤ 32 KiB); larger requests are backed by an ordinary
// Go heap allocation and inherit its alignment.
func Allocate(size int) (uintptr, bool) {
	l := threadcache.Acquire()
	defer threadcache.Release(l)
	return l.Allocate(size)
}

// Deallocate returns a block obtained from Allocate. addr must be a
// value Allocate returned, and size must be the same size passed to
// that call (or any size that rounds into the same class). A nil
// address or non-positive size is a no-op (spec.md §6/§7).
func Deallocate(addr uintptr, size int) {
	l := threadcache.Acquire()
	defer threadcache.Release(l)
	l.Deallocate(addr, size)
}
