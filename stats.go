package memfab

import "github.com/coreallox/memfab/internal/pagecache"

// Stats is a point-in-time snapshot of allocator state, useful for the
// property tests in spec.md §8 and for callers who want visibility
// without the CLI or persisted-state surfaces spec.md §6 explicitly
// excludes.
type Stats struct {
	// FreePages is the total number of pages PageCache currently holds
	// free (not yet leased to any CentralCache shard, and not returned
	// to the OS).
	FreePages int

	// LargeBlockBytes is the total bytes currently outstanding on the
	// large-block path (allocations above the size-class table's
	// largest entry).
	LargeBlockBytes int64
}

// GetStats returns a snapshot of the current allocator state.
func GetStats() Stats {
	return Stats{
		FreePages:       pagecache.Global.FreePageCount(),
		LargeBlockBytes: pagecache.LargeBlockBytes(),
	}
}

// Shutdown releases every OS-level mapping PageCache has acquired.
// Idempotent. Allocations after Shutdown are undefined (spec.md §8
// scenario 6 permits implementations to prohibit use-after-stop).
func Shutdown() {
	pagecache.Global.Stop()
}
