// Package centralcache implements the CentralCache tier: a process-wide
// singleton, one independent shard per size class, each owning a
// free-list, a spin lock, and the span-record bookkeeping that makes it
// safe to recycle whole runs back to PageCache (spec.md §4.3).
package centralcache

import (
	"github.com/coreallox/memfab/internal/freelist"
	"github.com/coreallox/memfab/internal/pagecache"
	"github.com/coreallox/memfab/internal/sizeclass"
	"github.com/coreallox/memfab/internal/spinlock"
	"github.com/coreallox/memfab/internal/xlog"
)

// shard is the per-class state spec.md §3 describes: "the free-list
// head, the free-list length, a spin flag, an ordered map keyed by run
// start address mapping to span records, and a counter next_group_count
// driving the slow-start schedule."
type shard struct {
	lock spinlock.Flag

	head   uintptr
	length int32

	spans          spanIndex
	nextGroupCount int32
}

// Cache is the process-wide CentralCache singleton.
type Cache struct {
	shards [sizeclass.NumClasses]shard
	pages  *pagecache.Cache
}

// New returns a CentralCache backed by pages. Most callers want Global;
// New exists for tests that need an isolated instance.
func New(pages *pagecache.Cache) *Cache {
	return &Cache{pages: pages}
}

// Global is the single process-wide CentralCache instance, backed by
// pagecache.Global (spec.md §9's "PageCache before CentralCache... on
// first use" initialisation order, realized as package-var wiring).
var Global = New(pagecache.Global)

// Allocate serves batchCount blocks of the given class, sized per
// spec.md §4.3's fast/slow path. classIdx must be a valid index into
// sizeclass.Classes. Returns the head of a batchCount-long free-list
// chain, or ok=false if PageCache could not grow.
func (c *Cache) Allocate(classIdx int, batchCount int32) (uintptr, bool) {
	size := sizeclass.Classes[classIdx]
	sh := &c.shards[classIdx]

	sh.lock.Lock()
	defer sh.lock.Unlock()

	if sh.length >= batchCount {
		return sh.detachFast(batchCount), true
	}
	return sh.refillSlow(c.pages, batchCount, size)
}

// AllocateLarge serves a single allocation above sizeclass.MaxCacheable,
// forwarding straight to PageCache's large-block path (spec.md §4.2
// "Sizes above 32 KiB bypass the cache: they delegate to CentralCache,
// which further delegates to PageCache's large-block path").
func (c *Cache) AllocateLarge(size int) (uintptr, bool) {
	return c.pages.AllocateUnit(size)
}

// Deallocate returns the null-terminated chain rooted at head to the
// class free list, purging and releasing any run whose in-use count
// drops to zero (spec.md §4.3 Deallocate).
func (c *Cache) Deallocate(classIdx int, head uintptr) {
	sh := &c.shards[classIdx]

	sh.lock.Lock()
	defer sh.lock.Unlock()

	cur := head
	for cur != 0 {
		next := freelist.Pop(cur)

		freelist.Push(cur, sh.head)
		sh.head = cur
		sh.length++

		rec := sh.spans.owner(cur)
		if rec == nil {
			xlog.Fatal("centralcache: freed block not claimed by any span record", "addr", cur, "class", classIdx)
		}
		rec.inUse--
		if rec.inUse < 0 {
			xlog.Fatal("centralcache: span in-use count underflow", "addr", cur, "class", classIdx)
		}
		if rec.inUse == 0 {
			sh.purgeRun(rec)
			sh.spans.remove(rec)
			sh.nextGroupCount = halve(sh.nextGroupCount)
			c.pages.DeallocatePage(rec.runStart, int(rec.runSize)/pagecache.PageSize)
		}

		cur = next
	}
}

// DeallocateLarge returns a block obtained from AllocateLarge.
func (c *Cache) DeallocateLarge(addr uintptr) {
	c.pages.DeallocateUnit(addr)
}

// detachFast pops batchCount nodes from the shard's free list, crediting
// each block's owning span record's in-use count on the way
// (spec.md §4.3 Allocate fast path). Caller holds sh.lock.
func (sh *shard) detachFast(batchCount int32) uintptr {
	head := sh.head
	cur := head
	for i := int32(0); i < batchCount; i++ {
		rec := sh.spans.owner(cur)
		if rec == nil {
			xlog.Fatal("centralcache: free-list block not claimed by any span record", "addr", cur)
		}
		rec.inUse++

		next := freelist.Pop(cur)
		if i == batchCount-1 {
			freelist.Push(cur, 0)
			sh.head = next
		} else {
			cur = next
		}
	}
	sh.length -= batchCount
	return head
}

// refillSlow requests a fresh run from PageCache, slices it into blocks
// of size, and serves batchCount of them (spec.md §4.3 Allocate slow
// path). Caller holds sh.lock.
func (sh *shard) refillSlow(pages *pagecache.Cache, batchCount int32, size int32) (uintptr, bool) {
	pageCount := sh.nextPageCount(size)

	runStart, ok := pages.AllocatePage(pageCount)
	if !ok {
		return 0, false
	}
	runSize := int32(pageCount) * pagecache.PageSize

	rec := &spanRecord{runStart: runStart, runSize: runSize, blockSize: size}
	sh.spans.insert(rec)

	count := runSize / size
	take := batchCount
	if take > count {
		take = count
	}

	// Link every block in the run into one chain, address-arithmetic
	// only (no pointer walking needed since blocks are contiguous and
	// equally sized).
	for i := int32(0); i < count-1; i++ {
		addr := runStart + uintptr(i)*uintptr(size)
		freelist.Push(addr, addr+uintptr(size))
	}
	freelist.Push(runStart+uintptr(count-1)*uintptr(size), 0)

	head := runStart
	returnedTail := runStart + uintptr(take-1)*uintptr(size)
	freelist.Push(returnedTail, 0)
	rec.inUse = take

	if take < count {
		remainderHead := runStart + uintptr(take)*uintptr(size)
		remainderTail := runStart + uintptr(count-1)*uintptr(size)
		freelist.Push(remainderTail, sh.head)
		sh.head = remainderHead
		sh.length += count - take
	}

	return head, true
}

// purgeRun removes every free-list node belonging to rec's run via a
// single linear walk (spec.md §4.3 Deallocate). Caller holds sh.lock.
func (sh *shard) purgeRun(rec *spanRecord) {
	var prev uintptr
	cur := sh.head
	for cur != 0 {
		next := freelist.Pop(cur)
		if rec.contains(cur) {
			if prev == 0 {
				sh.head = next
			} else {
				freelist.Push(prev, next)
			}
			sh.length--
		} else {
			prev = cur
		}
		cur = next
	}
}

// nextPageCount is GetAllocatedPageCount (spec.md §4.3): returns the
// current next_group_count (floor 1), post-increments it, and converts
// groups into pages. Caller holds sh.lock.
func (sh *shard) nextPageCount(size int32) int {
	groups := sh.nextGroupCount
	if groups < 1 {
		groups = 1
	}
	sh.nextGroupCount = groups + 1

	bytes := int64(groups) * int64(sizeclass.MaxFreeBytesPerList)
	pages := (bytes + pagecache.PageSize - 1) / pagecache.PageSize
	return int(pages)
}

func halve(n int32) int32 {
	n /= 2
	if n < 1 {
		return 1
	}
	return n
}
