// Package sizeclass provides the fixed, compile-time table that every
// cacheable allocation rounds up to.
//
// The table has 32 monotonically increasing entries from 8 B to 32 KiB,
// coarsening in phases: 8 B steps while small, widening as sizes grow so
// that internal waste stays bounded without needing hundreds of classes.
package sizeclass

import "sort"

// Classes is the fixed size-class table, smallest to largest.
//
// Boundaries are this package's own construction (the pack this module
// was learned from has no size-class table of its own to copy verbatim);
// they follow the piecewise-linear-then-geometric shape common to
// segregated-fit allocators, tuned to land on exactly 32 entries ending
// at MaxCacheable.
var Classes = [32]int32{
	8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128,
	160, 192, 224, 256,
	320, 384, 448, 512,
	640, 768, 896, 1024,
	1536, 2048, 3072, 4096,
	8192, 16384, 24576, 32768,
}

// MaxCacheable is the largest size that rounds into a size class.
// Requests above this bypass the cache entirely (spec.md §4.1).
const MaxCacheable = int32(32768)

// NumClasses is the number of entries in Classes.
const NumClasses = len(Classes)

// MaxFreeBytesPerList (≈ 2 MiB) is the single "MAX_FREE_BYTES_PER_LIST"
// tunable spec.md §4.2/§4.3 refers to from two places: ThreadCache's
// flush-half trigger and CentralCache's group-to-pages conversion in
// GetAllocatedPageCount. It lives here, rather than in either tier's own
// package, so both can depend on sizeclass without a cycle between them.
const MaxFreeBytesPerList = 2 << 20

// MaxUnitCount is MAX_UNIT_COUNT (spec.md §4.2): page_size / pointer_size,
// the third cap on a ThreadCache batch-count schedule.
const MaxUnitCount = 4096 / 8

// indexOf is a precomputed size -> table-index map, built once at package
// init so IndexOf is a true O(1) hash lookup rather than a second binary
// search (Of already pays for one).
var indexOf = func() map[int32]int {
	m := make(map[int32]int, NumClasses)
	for i, sz := range Classes {
		m[sz] = i
	}
	return m
}()

// Of returns the smallest class size >= n for n <= MaxCacheable, and n
// unchanged for larger requests (which bypass the cache; see spec.md
// §4.1 and §4.4's large-block path).
//
// Binary search over a fixed 32-entry table is bounded at 6 probes
// regardless of n, satisfying the "constant time" requirement for a
// table of this size — the same technique this module's teacher package
// uses for its own size-class lookup.
func Of(n int32) int32 {
	if n > MaxCacheable {
		return n
	}
	idx := sort.Search(NumClasses, func(i int) bool { return Classes[i] >= n })
	return Classes[idx]
}

// IndexOf returns the table position of cls, the size class's index into
// Classes. cls must be a value returned by Of for some n <= MaxCacheable;
// passing any other value returns -1.
func IndexOf(cls int32) int {
	idx, ok := indexOf[cls]
	if !ok {
		return -1
	}
	return idx
}
