package bootshim

import (
	"testing"
	"unsafe"
)

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

// TestBumpAllocatorSeedScenario replays the seed layout: init an 80 KiB
// range, allocate [100,8], [200,16], [300,32] (offsets are descriptive
// only), and check every pointer is non-nil, correctly aligned, and
// strictly increasing.
func TestBumpAllocatorSeedScenario(t *testing.T) {
	a := NewBumpAllocator()
	mem := make([]byte, 80*1024)
	a.Init(mem)

	type req struct{ size, align int }
	reqs := []req{{8, 8}, {16, 16}, {32, 32}}

	var lastAddr uintptr
	a.WithGlobalAlloc(func() {
		for i, r := range reqs {
			got := a.Alloc(r.size, r.align)
			if got == nil {
				t.Fatalf("alloc %d: got nil, want %d bytes", i, r.size)
			}
			if len(got) != r.size {
				t.Fatalf("alloc %d: len = %d, want %d", i, len(got), r.size)
			}
			addr := addrOf(got)
			if addr%uintptr(r.align) != 0 {
				t.Fatalf("alloc %d: address %#x not aligned to %d", i, addr, r.align)
			}
			if i > 0 && addr <= lastAddr {
				t.Fatalf("alloc %d: address %#x not greater than previous %#x", i, addr, lastAddr)
			}
			lastAddr = addr
		}
	})
}

// TestBumpAllocatorLargeSequentialGrowth mirrors pushing 4096 bytes one at
// a time followed by a bulk resize to 10000 bytes, verifying neither phase
// ever returns nil.
func TestBumpAllocatorLargeSequentialGrowth(t *testing.T) {
	a := NewBumpAllocator()
	mem := make([]byte, 1<<20)
	a.Init(mem)

	a.WithGlobalAlloc(func() {
		for i := 0; i < 4096; i++ {
			if a.Alloc(1, 1) == nil {
				t.Fatalf("push byte %d: unexpected nil", i)
			}
		}
		if a.Alloc(10000, 8) == nil {
			t.Fatalf("resize to 10000: unexpected nil")
		}
	})
}

func TestBumpAllocatorOutOfMemoryReturnsNil(t *testing.T) {
	a := NewBumpAllocator()
	a.Init(make([]byte, 16))

	a.WithGlobalAlloc(func() {
		if a.Alloc(8, 8) == nil {
			t.Fatalf("first alloc: unexpected nil")
		}
		if got := a.Alloc(16, 8); got != nil {
			t.Fatalf("over-budget alloc: got %v, want nil", got)
		}
	})
}

func TestBumpAllocatorDoubleEnablePanics(t *testing.T) {
	a := NewBumpAllocator()
	a.Init(make([]byte, 16))

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double enableAlloc")
		}
	}()
	a.enableAlloc()
	a.enableAlloc()
}

func TestBumpAllocatorReenableAfterDisablePanics(t *testing.T) {
	a := NewBumpAllocator()
	a.Init(make([]byte, 16))
	a.enableAlloc()
	a.disableAlloc()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic re-enabling after disable")
		}
	}()
	a.enableAlloc()
}
