package osmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocReturnsZeroedPageAlignedMemory(t *testing.T) {
	addr, buf, err := Alloc(PageSize)
	require.NoError(t, err)
	require.NotZero(t, addr)
	require.Len(t, buf, PageSize)
	require.Zero(t, addr%8, "address must be pointer-aligned")

	for i, b := range buf {
		require.Zerof(t, b, "byte %d not zero-initialised", i)
	}

	require.NoError(t, Free(addr, buf))
}

func TestAllocRejectsNonPositiveSize(t *testing.T) {
	_, _, err := Alloc(0)
	require.Error(t, err)
	_, _, err = Alloc(-1)
	require.Error(t, err)
}

func TestFreeOfZeroAddressIsNoop(t *testing.T) {
	require.NoError(t, Free(0, nil))
}

func TestMultipleMappingsAreDistinct(t *testing.T) {
	a1, b1, err := Alloc(PageSize)
	require.NoError(t, err)
	a2, b2, err := Alloc(PageSize)
	require.NoError(t, err)

	require.NotEqual(t, a1, a2)

	b1[0] = 0xAA
	require.Zero(t, b2[0])

	require.NoError(t, Free(a1, b1))
	require.NoError(t, Free(a2, b2))
}
