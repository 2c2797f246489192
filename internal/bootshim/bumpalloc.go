// Package bootshim implements the allocator, DMA-hint heuristics, and
// command-line parsing used during early paravisor boot, before usermode
// services are available.
package bootshim

import (
	"fmt"
	"sync"

	"github.com/openhcl/paravisor-core/internal/debug"
	"github.com/openhcl/paravisor-core/internal/timeslice"
)

var bootshimLog = debug.WithSource("bootshim", debug.ComponentBootshim).AtVtl(debug.Vtl2)

type allocState int

const (
	// allocAllowed is the state before enable_alloc has ever been called.
	allocAllowed allocState = iota
	allocEnabled
	allocDisabled
)

// BumpAllocator is a single-use, non-reentrant bump allocator over a single
// contiguous memory range. It is not safe for concurrent use: the bootshim
// runs single-threaded, and the one caller (mesh_protobuf decode) never
// overlaps allocator use across goroutines.
type BumpAllocator struct {
	mu sync.Mutex

	buf   []byte
	next  int
	state allocState

	allocCount int
	rec        *timeslice.Recorder
}

// NewBumpAllocator returns an allocator that has not yet been initialized
// with a backing range.
func NewBumpAllocator() *BumpAllocator {
	return &BumpAllocator{rec: timeslice.NewRecorder()}
}

// Init sets the backing range for the allocator. It must be called exactly
// once; calling it again panics.
func (a *BumpAllocator) Init(mem []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.buf != nil {
		panic(fmt.Sprintf("bump allocator memory range previously set (len=%d)", len(a.buf)))
	}
	a.buf = mem
	a.next = 0
}

// enableAlloc transitions Allowed -> Enabled. Panics if already enabled or
// disabled.
func (a *BumpAllocator) enableAlloc() {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case allocAllowed:
		a.state = allocEnabled
	case allocEnabled:
		panic("allocations are already enabled")
	case allocDisabled:
		panic("allocations were previously disabled and cannot be re-enabled")
	}
}

// disableAlloc transitions Enabled -> Disabled. Panics if never enabled or
// already disabled.
func (a *BumpAllocator) disableAlloc() {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case allocAllowed:
		panic("allocations were never enabled")
	case allocEnabled:
		a.state = allocDisabled
	case allocDisabled:
		panic("allocations were previously disabled and cannot be disabled again")
	}
}

func (a *BumpAllocator) logStats() {
	a.mu.Lock()
	allocated := a.next
	free := len(a.buf) - a.next
	count := a.allocCount
	a.mu.Unlock()

	bootshimLog.Writef("bump allocator: allocated %d bytes in %d allocations (%d bytes free)", allocated, count, free)
}

// WithGlobalAlloc runs f with allocations enabled, then permanently disables
// them and logs a usage summary. Re-entering WithGlobalAlloc after a prior
// call panics, mirroring the bootshim's one-shot mesh_protobuf-decode usage.
func (a *BumpAllocator) WithGlobalAlloc(f func()) {
	a.enableAlloc()
	f()
	a.disableAlloc()
	a.logStats()
}

// Alloc reserves size bytes aligned to align (which must be a power of two),
// returning the backing slice for the allocation. It returns nil if the
// allocator is out of memory or is not currently enabled for use outside a
// WithGlobalAlloc scope misuse case (a programming error, not OOM).
//
// Freeing is a no-op; there is no Free method.
func (a *BumpAllocator) Alloc(size, align int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != allocEnabled {
		panic(fmt.Sprintf("allocations are not allowed (state=%d)", a.state))
	}

	alignOffset := alignUpOffset(a.next, align)
	allocStart := a.next + alignOffset
	allocEnd := allocStart + size

	// Layout-equivalent overflow check: Go ints are native word size, and
	// size is bounded by len(a.buf) in practice, so wraparound cannot
	// occur twice; this mirrors the single-overflow-check comment in the
	// original allocator.
	if allocEnd < allocStart {
		return nil
	}

	if allocEnd > len(a.buf) {
		return nil // out of memory
	}

	a.next = allocEnd
	a.allocCount++
	a.rec.Record(timeslice.TsBootshimAlloc)
	return a.buf[allocStart:allocEnd:allocEnd]
}

func alignUpOffset(next, align int) int {
	if align <= 1 {
		return 0
	}
	rem := next % align
	if rem == 0 {
		return 0
	}
	return align - rem
}
