//go:build windows

package serialization

import (
	"os"
	"syscall"
	"unsafe"
)

// mmapFile maps the first size bytes of f read-only.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	hi, lo := uint32(size>>32), uint32(size) //nolint:gosec // G115: split into halves
	mapping, err := syscall.CreateFileMapping(syscall.Handle(f.Fd()), nil, syscall.PAGE_READONLY, hi, lo, nil)
	if err != nil {
		return nil, err
	}
	// The view holds its own reference to the mapping.
	defer syscall.CloseHandle(mapping) //nolint:errcheck

	addr, err := syscall.MapViewOfFile(mapping, syscall.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size)), nil //nolint:gosec // G103
}

func munmapFile(data []byte) error {
	return syscall.UnmapViewOfFile(uintptr(unsafe.Pointer(unsafe.SliceData(data)))) //nolint:gosec // G103
}
