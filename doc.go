// Package memfab is a general-purpose concurrent memory allocator built
// as a three-tier fabric: a per-goroutine-affinity ThreadCache, a
// process-wide per-size-class CentralCache, and a process-wide PageCache
// that mediates with the operating system.
//
// Allocate and Deallocate are the only entry points most callers need.
// GetStats offers read-only introspection, and Shutdown releases every
// OS-level mapping the allocator has acquired.
package memfab
