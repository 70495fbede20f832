package freelist

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// blockAt carves a pointer-sized-aligned address out of a byte slice for
// test purposes. Production callers use pages from internal/osmem.
func blockAt(buf []byte, off int) uintptr {
	return uintptr(unsafe.Pointer(&buf[off])) //nolint:gosec // test-only pointer arithmetic
}

func TestPushPopRoundTrip(t *testing.T) {
	buf := make([]byte, 3*unsafe.Sizeof(uintptr(0)))
	a, b, c := blockAt(buf, 0), blockAt(buf, 8), blockAt(buf, 16)

	Push(a, 0)
	Push(b, a)
	Push(c, b)

	require.Equal(t, b, Pop(c))
	require.Equal(t, a, Pop(b))
	require.Equal(t, uintptr(0), Pop(a))
}

func TestNextIsSharedStorage(t *testing.T) {
	buf := make([]byte, unsafe.Sizeof(uintptr(0)))
	a := blockAt(buf, 0)

	*Next(a) = 0xdeadbeef
	require.Equal(t, uintptr(0xdeadbeef), Pop(a))
}
