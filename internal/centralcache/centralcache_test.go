package centralcache

import (
	"testing"

	"github.com/coreallox/memfab/internal/freelist"
	"github.com/coreallox/memfab/internal/pagecache"
	"github.com/coreallox/memfab/internal/sizeclass"
	"github.com/stretchr/testify/require"
)

func newCache() *Cache {
	return New(pagecache.New())
}

func chainLen(head uintptr) int {
	n := 0
	for cur := head; cur != 0; cur = freelist.Pop(cur) {
		n++
	}
	return n
}

func TestAllocateSlowPathReturnsRequestedBatch(t *testing.T) {
	c := newCache()
	classIdx := sizeclass.IndexOf(64)
	require.GreaterOrEqual(t, classIdx, 0)

	head, ok := c.Allocate(classIdx, 16)
	require.True(t, ok)
	require.NotZero(t, head)
	require.Equal(t, 16, chainLen(head))
}

func TestAllocateFastPathServesFromExistingList(t *testing.T) {
	c := newCache()
	classIdx := sizeclass.IndexOf(64)

	// Take fewer blocks than a fresh run's slow-start grant, so the
	// class list still holds a surplus after this call, and the very
	// next Allocate can be served from it without touching PageCache.
	first, ok := c.Allocate(classIdx, 4)
	require.True(t, ok)
	require.Equal(t, 4, chainLen(first))
	require.Greater(t, c.shards[classIdx].length, int32(8))

	second, ok := c.Allocate(classIdx, 8)
	require.True(t, ok)
	require.Equal(t, 8, chainLen(second))
}

func TestDeallocateReleasesRunOnceInUseDropsToZero(t *testing.T) {
	c := newCache()
	classIdx := sizeclass.IndexOf(32)

	head, ok := c.Allocate(classIdx, 4)
	require.True(t, ok)

	require.Len(t, c.shards[classIdx].spans.records, 1)
	rec := c.shards[classIdx].spans.records[0]
	require.Equal(t, int32(4), rec.inUse)

	c.Deallocate(classIdx, head)
	require.Empty(t, c.shards[classIdx].spans.records, "run should be fully released once in-use drops to zero")
}

func TestDeallocatePurgesOnlyTheReleasedRunsBlocks(t *testing.T) {
	c := newCache()
	classIdx := sizeclass.IndexOf(32)

	a, ok := c.Allocate(classIdx, 4)
	require.True(t, ok)

	// Force a second, distinct run: rather than allocating every block of
	// the first run, zero the class list's recorded length so the next
	// Allocate takes the slow path and requests a fresh run.
	sh := &c.shards[classIdx]
	sh.length = 0 // simulate the first run's remainder being exhausted

	b, ok := c.Allocate(classIdx, 4)
	require.True(t, ok)

	c.Deallocate(classIdx, a)
	require.Len(t, c.shards[classIdx].spans.records, 1, "only a's run should be released")

	c.Deallocate(classIdx, b)
	require.Empty(t, c.shards[classIdx].spans.records)
}

func TestNextPageCountFollowsSlowStartAndHalvesOnRelease(t *testing.T) {
	c := newCache()
	classIdx := sizeclass.IndexOf(16)
	sh := &c.shards[classIdx]

	first := sh.nextPageCount(16)
	second := sh.nextPageCount(16)
	require.Greater(t, second, 0)
	require.GreaterOrEqual(t, sh.nextGroupCount, int32(3))
	_ = first

	sh.nextGroupCount = halve(sh.nextGroupCount)
	require.GreaterOrEqual(t, sh.nextGroupCount, int32(1))
}

func TestAllocateLargeDelegatesToPageCache(t *testing.T) {
	c := newCache()
	addr, ok := c.AllocateLarge(1 << 20)
	require.True(t, ok)
	require.NotZero(t, addr)
	c.DeallocateLarge(addr)
}
