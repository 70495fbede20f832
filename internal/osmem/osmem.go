// Package osmem is the raw OS page-mapping primitive PageCache is the
// sole consumer of (spec.md §1 "the raw OS page-mapping primitive... is
// assumed to exist; only the contract consumed from it is specified,"
// and §4.4 SystemAlloc/SystemFree).
//
// Alloc reserves and commits n contiguous, page-aligned, zero-initialised
// bytes directly from the operating system — outside Go's garbage
// collected heap, so the returned address is stable for the lifetime of
// the mapping and safe to hand out as a raw uintptr. Free releases a
// mapping obtained from Alloc.
package osmem

import "errors"

// PageSize is the fixed OS page granularity this module is built around
// (spec.md §3 "Page").
const PageSize = 4096

// ErrAlloc is returned when the OS refuses to provide backing pages
// (spec.md §7 kind 2, "OS allocation failure").
var ErrAlloc = errors.New("osmem: OS refused to map pages")

// Alloc reserves and commits nBytes of fresh memory, rounded up by the
// caller to a page multiple beforehand (osmem itself does not round; the
// page accounting lives in internal/pagecache). It returns the mapping's
// base address, a byte slice viewing the same memory (kept only to give
// the runtime something to anchor the mapping to; callers must not rely
// on Go's bounds checking for pointer arithmetic past this slice), and
// an error if the OS mapping call failed.
func Alloc(nBytes int) (uintptr, []byte, error) {
	if nBytes <= 0 {
		return 0, nil, errors.New("osmem: nBytes must be positive")
	}
	return rawAlloc(nBytes)
}

// Free releases a mapping previously returned by Alloc. buf must be the
// exact slice Alloc returned for addr.
func Free(addr uintptr, buf []byte) error {
	if addr == 0 {
		return nil
	}
	return rawFree(addr, buf)
}
