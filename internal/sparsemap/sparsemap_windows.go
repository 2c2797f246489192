//go:build windows

package sparsemap

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// New reserves a contiguous range of length bytes of virtual address
// space via VirtualAlloc(MEM_RESERVE), committing no pages until Alloc or
// MapFile backs a subrange.
func New(length int) (*SparseMapping, error) {
	si := windows.Systeminfo{}
	windows.GetSystemInfo(&si)
	pageSize := int(si.PageSize)
	length = roundUp(length, pageSize)

	addr, err := windows.VirtualAlloc(0, uintptr(length), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, fmt.Errorf("sparsemap: reserve %d bytes: %w", length, err)
	}
	base := unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
	return &SparseMapping{base: base}, nil
}

func roundUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// Alloc commits zero-filled memory over [offset, offset+length) via
// VirtualAlloc(MEM_COMMIT) at the fixed address within the reservation.
func (m *SparseMapping) Alloc(offset, length int) error {
	if err := m.check(offset, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&m.base[offset]))
	if _, err := windows.VirtualAlloc(addr, uintptr(length), windows.MEM_COMMIT, windows.PAGE_READWRITE); err != nil {
		return &MemoryError{Offset: offset, Err: err}
	}
	return nil
}

// MapFile maps length bytes of f starting at fileOffset into the
// mapping at offset. The existing reservation at that subrange is freed
// first (MapViewOfFileEx requires the target range be free, not merely
// reserved), then a file mapping view is placed at the same address.
func (m *SparseMapping) MapFile(offset int, f *os.File, fileOffset int64, length int) error {
	if err := m.check(offset, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&m.base[offset]))
	if err := windows.VirtualFree(addr, uintptr(length), windows.MEM_DECOMMIT); err != nil {
		return &MemoryError{Offset: offset, Err: err}
	}

	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READWRITE, 0, 0, nil)
	if err != nil {
		return &MemoryError{Offset: offset, Err: err}
	}
	defer windows.CloseHandle(h)

	_, err = windows.MapViewOfFileEx(
		h,
		windows.FILE_MAP_READ|windows.FILE_MAP_WRITE,
		uint32(fileOffset>>32),
		uint32(fileOffset&0xffffffff),
		uintptr(length),
		addr,
	)
	if err != nil {
		return &MemoryError{Offset: offset, Err: err}
	}
	return nil
}

// Unmap decommits memory over [offset, offset+length), leaving the range
// reserved but inaccessible until a later Alloc or MapFile.
func (m *SparseMapping) Unmap(offset, length int) error {
	if err := m.check(offset, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&m.base[offset]))
	if err := windows.VirtualFree(addr, uintptr(length), windows.MEM_DECOMMIT); err != nil {
		return &MemoryError{Offset: offset, Err: err}
	}
	return nil
}

// Close releases the entire VA reservation. The mapping must not be used
// afterward.
func (m *SparseMapping) Close() error {
	if len(m.base) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&m.base[0]))
	err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
	m.base = nil
	return err
}
