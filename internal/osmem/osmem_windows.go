//go:build windows

package osmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// rawAlloc reserves and commits nBytes of anonymous, zero-initialised,
// read-write memory via VirtualAlloc — the Windows half of spec.md §6's
// platform abstraction.
func rawAlloc(nBytes int) (uintptr, []byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(nBytes), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return 0, nil, ErrAlloc
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), nBytes)
	return addr, buf, nil
}

// rawFree releases a region obtained from rawAlloc.
func rawFree(addr uintptr, _ []byte) error {
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}
