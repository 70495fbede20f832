package threadcache

import (
	"testing"

	"github.com/coreallox/memfab/internal/centralcache"
	"github.com/coreallox/memfab/internal/pagecache"
	"github.com/coreallox/memfab/internal/sizeclass"
	"github.com/stretchr/testify/require"
)

func newLocalForTest() *Local {
	return newLocal(centralcache.New(pagecache.New()))
}

func TestAllocateZeroSizeIsRejected(t *testing.T) {
	l := newLocalForTest()
	addr, ok := l.Allocate(0)
	require.False(t, ok)
	require.Zero(t, addr)
}

func TestAllocateRefillsThenServesFromFastPath(t *testing.T) {
	l := newLocalForTest()

	a, ok := l.Allocate(64)
	require.True(t, ok)
	require.NotZero(t, a)

	classIdx := sizeclass.IndexOf(sizeclass.Of(64))
	require.Equal(t, minBatchCount-1, int(l.classes[classIdx].length), "batch minus the one retained block should sit in the local list")

	b, ok := l.Allocate(64)
	require.True(t, ok)
	require.NotEqual(t, a, b)
}

func TestDeallocateRoundTrip(t *testing.T) {
	l := newLocalForTest()

	a, ok := l.Allocate(128)
	require.True(t, ok)
	l.Deallocate(a, 128)

	b, ok := l.Allocate(128)
	require.True(t, ok)
	require.Equal(t, a, b, "the just-freed block should be the next one served")
}

func TestDeallocateFlushesHalfAtCap(t *testing.T) {
	l := newLocalForTest()
	const blockSize = 4096
	classIdx := sizeclass.IndexOf(sizeclass.Of(blockSize))

	// Enough real blocks that freeing them all crosses
	// MaxFreeBytesPerList for this class, forcing at least one flush.
	need := int(sizeclass.MaxFreeBytesPerList)/blockSize + 100

	addrs := make([]uintptr, 0, need)
	for len(addrs) < need {
		a, ok := l.Allocate(blockSize)
		require.True(t, ok)
		addrs = append(addrs, a)
	}

	var maxObserved int32
	for _, a := range addrs {
		l.Deallocate(a, blockSize)
		if l.classes[classIdx].length > maxObserved {
			maxObserved = l.classes[classIdx].length
		}
	}

	capNodes := int32(sizeclass.MaxFreeBytesPerList/blockSize) + int32(sizeclass.MaxUnitCount)
	require.LessOrEqual(t, maxObserved, capNodes, "flush should keep the local list bounded")
}

func TestLargeAllocationBypassesClassLists(t *testing.T) {
	l := newLocalForTest()

	addr, ok := l.Allocate(int(sizeclass.MaxCacheable) + 1024)
	require.True(t, ok)
	for i := range l.classes {
		require.Zero(t, l.classes[i].length)
	}
	l.Deallocate(addr, int(sizeclass.MaxCacheable)+1024)
}

func TestNextBatchDoublesAndCapsByClassSize(t *testing.T) {
	require.Equal(t, int32(32), nextBatch(16, 64))
	require.EqualValues(t, batchCeiling(64), nextBatch(1<<20, 64))
	require.EqualValues(t, batchCeiling(4096), nextBatch(1<<20, 4096))
}

func TestHalveBatchFloorsAtFour(t *testing.T) {
	require.Equal(t, int32(4), halveBatch(4))
	require.Equal(t, int32(4), halveBatch(6))
	require.Equal(t, int32(8), halveBatch(16))
}
