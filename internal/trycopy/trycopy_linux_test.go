//go:build linux

package trycopy_test

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/openhcl/paravisor-core/internal/trycopy"
)

// mapReservedOnly reserves a VA range with no backing (PROT_NONE), so
// that any access to it faults without touching real memory.
func mapReservedOnly(t *testing.T, size int) []byte {
	t.Helper()
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		t.Fatalf("mmap PROT_NONE: %v", err)
	}
	t.Cleanup(func() { _ = unix.Munmap(mem) })
	return mem
}

func mapBacked(t *testing.T, size int) []byte {
	t.Helper()
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		t.Fatalf("mmap backed: %v", err)
	}
	t.Cleanup(func() { _ = unix.Munmap(mem) })
	return mem
}

func TestPrimitivesFaultOnUnmappedAndSucceedOnMapped(t *testing.T) {
	pageSize := unix.Getpagesize()

	t.Run("read8_fault", func(t *testing.T) {
		mem := mapReservedOnly(t, pageSize)
		if _, err := trycopy.TryRead8(unsafe.Pointer(&mem[0])); err != trycopy.ErrFault {
			t.Fatalf("want ErrFault, got %v", err)
		}
	})

	t.Run("read32_mapped_matches_binary_native", func(t *testing.T) {
		mem := mapBacked(t, pageSize)
		binary.LittleEndian.PutUint32(mem, 0xdeadbeef)
		v, err := trycopy.TryRead32(unsafe.Pointer(&mem[0]))
		if err != nil {
			t.Fatalf("unexpected fault: %v", err)
		}
		if v != binary.LittleEndian.Uint32(mem) {
			t.Fatalf("mismatch: got %#x want %#x", v, binary.LittleEndian.Uint32(mem))
		}
	})

	t.Run("write64_fault", func(t *testing.T) {
		mem := mapReservedOnly(t, pageSize)
		if err := trycopy.TryWrite64(unsafe.Pointer(&mem[0]), 1); err != trycopy.ErrFault {
			t.Fatalf("want ErrFault, got %v", err)
		}
	})

	t.Run("cmpxchg32_roundtrip", func(t *testing.T) {
		mem := mapBacked(t, pageSize)
		binary.LittleEndian.PutUint32(mem, 5)
		prev, swapped, err := trycopy.TryCmpxchg32(unsafe.Pointer(&mem[0]), 5, 9)
		if err != nil || !swapped || prev != 5 {
			t.Fatalf("cmpxchg32: prev=%d swapped=%v err=%v", prev, swapped, err)
		}
		if binary.LittleEndian.Uint32(mem) != 9 {
			t.Fatalf("cmpxchg32 did not store new value")
		}
	})

	t.Run("memmove_fault_on_unmapped_src", func(t *testing.T) {
		dst := mapBacked(t, pageSize)
		src := mapReservedOnly(t, pageSize)
		if err := trycopy.TryMemmove(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), 16); err != trycopy.ErrFault {
			t.Fatalf("want ErrFault, got %v", err)
		}
	})

	t.Run("memset_matches_loop_fill", func(t *testing.T) {
		mem := mapBacked(t, pageSize)
		if err := trycopy.TryMemset(unsafe.Pointer(&mem[0]), 0xab, len(mem)); err != nil {
			t.Fatalf("unexpected fault: %v", err)
		}
		for i, b := range mem {
			if b != 0xab {
				t.Fatalf("byte %d = %#x, want 0xab", i, b)
			}
		}
	})
}

// S5 (spec.md S5): Memmove: copy data[8000..8000+len] to
// data[8000+offset..] for len in {0..1597}, offset in [-1024, 1024];
// verify result matches slice::copy_within (Go's builtin copy semantics
// on a single backing slice, which already handles overlap correctly).
func TestMemmoveMatchesCopyWithin(t *testing.T) {
	const base = 8000
	const dataLen = base + 1024 + 1597 + 1024
	lens := []int{0, 1, 17, 255, 256, 1000, 1597}
	offsets := []int{-1024, -513, -1, 0, 1, 513, 1024}

	for _, length := range lens {
		for _, offset := range offsets {
			want := make([]byte, dataLen)
			for i := range want {
				want[i] = byte(i)
			}
			copy(want[base+offset:], want[base:base+length])

			got := make([]byte, dataLen)
			for i := range got {
				got[i] = byte(i)
			}
			err := trycopy.TryMemmove(
				unsafe.Pointer(&got[base+offset]),
				unsafe.Pointer(&got[base]),
				length,
			)
			if err != nil {
				t.Fatalf("len=%d offset=%d: unexpected error %v", length, offset, err)
			}
			for i := range want {
				if want[i] != got[i] {
					t.Fatalf("len=%d offset=%d: mismatch at byte %d: want %d got %d", length, offset, i, want[i], got[i])
				}
			}
		}
	}
}
