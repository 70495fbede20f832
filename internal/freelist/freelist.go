// Package freelist provides the single accessor for the intrusive
// free-list encoding shared by the thread cache and central cache: a
// free block's first pointer-sized word stores the address of the next
// free block, giving zero per-node overhead (spec.md §3 "Block", §4.5,
// §9 "Intrusive free lists").
//
// Every free-list mutation in this module goes through Next so the
// pointer-in-block encoding has exactly one aliasing site, as spec.md's
// design notes require.
package freelist

import "unsafe"

// Next returns a mutable reference to the next-pointer stored in the
// first word of the block at addr. addr must be the base of a block at
// least one machine word (pointer size) long, backed by memory the
// caller owns outside Go's garbage-collected heap (pages obtained from
// internal/osmem) — never a Go-managed object, since the runtime is free
// to move or scan it in ways that would invalidate this cast.
func Next(addr uintptr) *uintptr {
	return (*uintptr)(unsafe.Pointer(addr)) //nolint:govet // intentional raw pointer arithmetic over OS-owned memory
}

// Push writes head into the first word of the block at addr, making addr
// the new logical head of a free list whose previous head was head.
func Push(addr, head uintptr) {
	*Next(addr) = head
}

// Pop reads and returns the next-pointer stored at addr, i.e. what addr's
// successor in the free list is.
func Pop(addr uintptr) uintptr {
	return *Next(addr)
}
