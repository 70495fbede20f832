// Package pagecache implements the global PageCache tier: the sole
// intermediary between the allocator fabric and the operating system
// (spec.md §4.4). It owns a pool of page-aligned runs, serves runs of a
// requested page count, and coalesces adjacent free runs on release.
package pagecache

import (
	"sort"
	"sync"

	"github.com/coreallox/memfab/internal/osmem"
	"github.com/coreallox/memfab/internal/xlog"
)

// PageSize is the fixed OS page granularity (spec.md §3 "Page").
const PageSize = osmem.PageSize

// growCount is PAGE_ALLOCATE_COUNT: the minimum number of pages requested
// from the OS on a cache miss, so a stream of small requests doesn't
// thrash the OS mapping call (spec.md §4.4).
const growCount = 2048

// run is a contiguous, page-aligned sequence of pages (spec.md §3 "Run").
type run struct {
	start uintptr
	pages int
}

func (r run) end() uintptr { return r.start + uintptr(r.pages)*PageSize }

// osAlloc records one OS-level mapping for teardown at Stop.
type osAlloc struct {
	addr uintptr
	buf  []byte
}

// Cache is the process-wide PageCache singleton (spec.md §3 "PageCache
// state"). Every exported method takes Cache's mutex for its entire
// duration (spec.md §4.4), except the large-block AllocateUnit/
// DeallocateUnit path in large.go, which never takes it.
type Cache struct {
	mu sync.Mutex

	byStart   []run           // sorted ascending by start; the neighbour index
	byCount   map[int][]uintptr // page count -> free run starts of that count
	countsAsc []int           // sorted ascending distinct keys present in byCount

	osAllocs []osAlloc
	stopped  bool
}

// New returns an empty PageCache. Most callers want Global; New exists
// for tests that need an isolated instance.
func New() *Cache {
	return &Cache{byCount: make(map[int][]uintptr)}
}

// Global is the single process-wide PageCache instance. spec.md §9 calls
// for "a defined initialisation order (PageCache before CentralCache
// before ThreadCache on first use)"; Global's zero-cost initialization
// here (a package-level var, ready before any other package's init can
// run) is what makes that order automatic.
var Global = New()

// AllocatePage serves pageCount contiguous pages, growing from the OS on
// a cache miss (spec.md §4.4 AllocatePage).
func (c *Cache) AllocatePage(pageCount int) (uintptr, bool) {
	if pageCount <= 0 {
		xlog.Fatal("pagecache: AllocatePage called with non-positive page count", "pageCount", pageCount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return 0, false
	}

	chosen, ok := c.popBestFit(pageCount)
	if !ok {
		grown, allocated := c.growFromOS(pageCount)
		if !allocated {
			return 0, false
		}
		chosen = grown
	}

	result := run{start: chosen.start, pages: pageCount}
	if remaining := chosen.pages - pageCount; remaining > 0 {
		c.insertRun(run{start: chosen.start + uintptr(pageCount)*PageSize, pages: remaining})
	}
	return result.start, true
}

// growFromOS requests max(growCount, pageCount) pages from the OS,
// records the mapping for teardown, and returns the resulting run.
func (c *Cache) growFromOS(pageCount int) (run, bool) {
	want := pageCount
	if want < growCount {
		want = growCount
	}

	addr, buf, err := osmem.Alloc(want * PageSize)
	if err != nil {
		return run{}, false
	}

	c.osAllocs = append(c.osAllocs, osAlloc{addr: addr, buf: buf})
	return run{start: addr, pages: want}, true
}

// DeallocatePage returns run to the cache, coalescing with any
// address-adjacent free runs (spec.md §4.4 DeallocatePage, invariant 4).
func (c *Cache) DeallocatePage(start uintptr, pageCount int) {
	if start == 0 || pageCount <= 0 {
		return
	}
	if start%PageSize != 0 {
		xlog.Fatal("pagecache: DeallocatePage got a non-page-aligned start", "start", start)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.findByStart(start); found {
		xlog.Fatal("pagecache: DeallocatePage on a run already indexed as free", "start", start)
	}

	r := run{start: start, pages: pageCount}

	// Coalesce left: repeatedly absorb the run immediately preceding r.
	for {
		idx, ok := c.predecessorIndex(r.start)
		if !ok {
			break
		}
		left := c.byStart[idx]
		if left.end() != r.start {
			break
		}
		c.removeRunAt(idx)
		r.start = left.start
		r.pages += left.pages
	}

	// Coalesce right: repeatedly absorb the run starting exactly at r.end().
	for {
		idx, ok := c.findByStart(r.end())
		if !ok {
			break
		}
		right := c.byStart[idx]
		c.removeRunAt(idx)
		r.pages += right.pages
	}

	c.insertRun(r)
}

// Stop releases every recorded OS allocation back to the OS. Idempotent
// (spec.md §4.4 Stop). After Stop, AllocatePage always fails.
func (c *Cache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	for _, a := range c.osAllocs {
		_ = osmem.Free(a.addr, a.buf)
	}
	c.osAllocs = nil
	c.byStart = nil
	c.byCount = make(map[int][]uintptr)
	c.countsAsc = nil
	c.stopped = true
}

// FreePageCount reports the total number of pages currently held free
// across all runs, for introspection (memfab.Stats).
func (c *Cache) FreePageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, r := range c.byStart {
		total += r.pages
	}
	return total
}

// ============================================================================
// Index maintenance (byStart / byCount / countsAsc)
// ============================================================================

func (c *Cache) findByStart(start uintptr) (int, bool) {
	idx := sort.Search(len(c.byStart), func(i int) bool { return c.byStart[i].start >= start })
	if idx < len(c.byStart) && c.byStart[idx].start == start {
		return idx, true
	}
	return 0, false
}

// predecessorIndex returns the index of the run with the greatest start
// strictly less than start, if any.
func (c *Cache) predecessorIndex(start uintptr) (int, bool) {
	idx := sort.Search(len(c.byStart), func(i int) bool { return c.byStart[i].start >= start })
	if idx == 0 {
		return 0, false
	}
	return idx - 1, true
}

func (c *Cache) insertRun(r run) {
	idx := sort.Search(len(c.byStart), func(i int) bool { return c.byStart[i].start >= r.start })
	c.byStart = append(c.byStart, run{})
	copy(c.byStart[idx+1:], c.byStart[idx:])
	c.byStart[idx] = r

	if _, exists := c.byCount[r.pages]; !exists {
		ci := sort.SearchInts(c.countsAsc, r.pages)
		c.countsAsc = append(c.countsAsc, 0)
		copy(c.countsAsc[ci+1:], c.countsAsc[ci:])
		c.countsAsc[ci] = r.pages
	}
	c.byCount[r.pages] = append(c.byCount[r.pages], r.start)
}

func (c *Cache) removeRunAt(idx int) run {
	r := c.byStart[idx]
	c.byStart = append(c.byStart[:idx], c.byStart[idx+1:]...)

	starts := c.byCount[r.pages]
	for i, s := range starts {
		if s == r.start {
			starts = append(starts[:i], starts[i+1:]...)
			break
		}
	}
	if len(starts) == 0 {
		delete(c.byCount, r.pages)
		ci := sort.SearchInts(c.countsAsc, r.pages)
		c.countsAsc = append(c.countsAsc[:ci], c.countsAsc[ci+1:]...)
	} else {
		c.byCount[r.pages] = starts
	}
	return r
}

// popBestFit removes and returns the smallest free run whose page count
// is >= pageCount (best-fit by count, then any element of that class's
// set — spec.md §4.4).
func (c *Cache) popBestFit(pageCount int) (run, bool) {
	ci := sort.Search(len(c.countsAsc), func(i int) bool { return c.countsAsc[i] >= pageCount })
	if ci == len(c.countsAsc) {
		return run{}, false
	}
	count := c.countsAsc[ci]
	starts := c.byCount[count]
	start := starts[len(starts)-1]

	idx, ok := c.findByStart(start)
	if !ok {
		xlog.Fatal("pagecache: byCount index out of sync with byStart", "start", start)
	}
	return c.removeRunAt(idx), true
}
