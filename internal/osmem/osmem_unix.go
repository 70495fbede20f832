//go:build unix

package osmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// rawAlloc maps nBytes of anonymous, zero-initialised, read-write memory
// via mmap — the Unix half of spec.md §6's "single abstraction over
// VirtualAlloc/VirtualFree on Windows and mmap/munmap with
// PROT_READ|PROT_WRITE and MAP_PRIVATE|MAP_ANONYMOUS elsewhere."
func rawAlloc(nBytes int) (uintptr, []byte, error) {
	buf, err := unix.Mmap(-1, 0, nBytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, nil, ErrAlloc
	}
	return uintptr(unsafe.Pointer(&buf[0])), buf, nil
}

// rawFree unmaps a region obtained from rawAlloc.
func rawFree(_ uintptr, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return unix.Munmap(buf)
}
