//go:build linux

package sparsemap

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// New reserves a contiguous range of length bytes of virtual address
// space, backed by no pages (PROT_NONE) until Alloc or MapFile commits a
// subrange. length is rounded up to the system page size.
func New(length int) (*SparseMapping, error) {
	pageSize := os.Getpagesize()
	length = roundUp(length, pageSize)
	base, err := unix.Mmap(-1, 0, length, unix.PROT_NONE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("sparsemap: reserve %d bytes: %w", length, err)
	}
	return &SparseMapping{base: base}, nil
}

func roundUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// Alloc commits anonymous, zero-filled memory over [offset, offset+length),
// replacing whatever was previously mapped there.
func (m *SparseMapping) Alloc(offset, length int) error {
	if err := m.check(offset, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	return m.mapFixed(offset, length, -1, 0, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
}

// MapFile maps length bytes of f starting at fileOffset into the
// mapping at offset, replacing whatever was previously mapped there. The
// mapping is MAP_SHARED, so writes through WriteAt (or AtomicSlice) are
// visible to other mappers of the same file.
func (m *SparseMapping) MapFile(offset int, f *os.File, fileOffset int64, length int) error {
	if err := m.check(offset, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	return m.mapFixed(offset, length, int(f.Fd()), fileOffset, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// mapFixed replaces the subrange [offset, offset+length) of the
// reservation with a fresh mapping, using MAP_FIXED so the kernel
// overwrites that exact VA range in place rather than choosing a new one.
//
// unix.Mmap does not accept a caller-supplied address, so the fixed
// remap goes through the raw mmap(2) syscall directly, the same pattern
// the rest of this codebase uses when it needs a mapping at a specific
// address rather than letting the kernel pick one.
func (m *SparseMapping) mapFixed(offset, length, fd int, fileOffset int64, prot, flags int) error {
	addr := uintptr(unsafe.Pointer(&m.base[offset]))
	_, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(length),
		uintptr(prot),
		uintptr(flags|unix.MAP_FIXED),
		uintptr(fd),
		uintptr(fileOffset),
	)
	if errno != 0 {
		return &MemoryError{Offset: offset, Err: errno}
	}
	return nil
}

// Unmap discards committed memory over [offset, offset+length), replacing
// it with an inaccessible (PROT_NONE) reservation so later accesses fault
// instead of silently reading zeroed pages.
func (m *SparseMapping) Unmap(offset, length int) error {
	if err := m.check(offset, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	return m.mapFixed(offset, length, -1, 0, unix.PROT_NONE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
}

// Close releases the entire VA reservation. The mapping must not be used
// afterward.
func (m *SparseMapping) Close() error {
	if len(m.base) == 0 {
		return nil
	}
	err := unix.Munmap(m.base)
	m.base = nil
	return err
}
