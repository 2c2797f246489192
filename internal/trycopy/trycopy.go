// Package trycopy provides memory access primitives that recover from
// faults instead of crashing the process. Callers use it to probe guest
// memory that is reserved but may not currently be backed by a page.
//
// The contract mirrors a fault-recoverable memcpy/memset/cmpxchg: every
// primitive either completes normally or returns ErrFault. No signal
// handler or instruction-pointer rewriting is involved; see the package
// doc comment on recoverFault for the substitution this makes.
package trycopy

import (
	"errors"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"unsafe"
)

// ErrFault is returned when a memory access faults (the address was
// reserved but unbacked, or otherwise inaccessible).
var ErrFault = errors.New("trycopy: memory access fault")

// MemoryError wraps ErrFault with the offset that faulted, for callers
// that need to report where in a larger region the fault occurred.
type MemoryError struct {
	Offset int
}

func (e *MemoryError) Error() string { return "trycopy: memory access fault" }

func (e *MemoryError) Unwrap() error { return ErrFault }

var panicOnFaultOnce sync.Once

// enableFaultRecovery arranges for invalid-memory panics in this process
// to be recoverable, rather than always fatal. debug.SetPanicOnFault only
// affects the calling goroutine's explicit memory accesses (not ordinary
// Go heap/stack use), which is exactly the scope trycopy needs: every
// access performed by this package goes through a pointer the caller
// claims is reserved, possibly-unbacked, address space.
func enableFaultRecovery() {
	panicOnFaultOnce.Do(func() {
		debug.SetPanicOnFault(true)
	})
}

// recoverFault converts a recovered invalid-memory panic into ErrFault.
// It re-panics anything else, since only access-fault panics are part of
// this package's contract.
//
// This stands in for the original mechanism of a process-global signal
// handler rewriting the faulting instruction pointer to a resume label:
// Go does not allow a recovered SIGSEGV to resume execution mid-function,
// so every primitive instead runs its single unsafe access inside a
// recover-guarded closure and reports the panic as an ordinary error.
func recoverFault(err *error) {
	if r := recover(); r != nil {
		if _, ok := r.(runtime.Error); ok {
			*err = ErrFault
			return
		}
		panic(r)
	}
}

func init() {
	enableFaultRecovery()
}

// TryRead8 reads a single byte at ptr, returning ErrFault if the address
// is not currently backed by memory.
func TryRead8(ptr unsafe.Pointer) (v uint8, err error) {
	defer recoverFault(&err)
	v = *(*uint8)(ptr)
	return v, nil
}

// TryRead16 reads a uint16 at ptr.
func TryRead16(ptr unsafe.Pointer) (v uint16, err error) {
	defer recoverFault(&err)
	v = *(*uint16)(ptr)
	return v, nil
}

// TryRead32 reads a uint32 at ptr.
func TryRead32(ptr unsafe.Pointer) (v uint32, err error) {
	defer recoverFault(&err)
	v = *(*uint32)(ptr)
	return v, nil
}

// TryRead64 reads a uint64 at ptr.
func TryRead64(ptr unsafe.Pointer) (v uint64, err error) {
	defer recoverFault(&err)
	v = *(*uint64)(ptr)
	return v, nil
}

// TryWrite8 writes a single byte at ptr.
func TryWrite8(ptr unsafe.Pointer, v uint8) (err error) {
	defer recoverFault(&err)
	*(*uint8)(ptr) = v
	return nil
}

// TryWrite16 writes a uint16 at ptr.
func TryWrite16(ptr unsafe.Pointer, v uint16) (err error) {
	defer recoverFault(&err)
	*(*uint16)(ptr) = v
	return nil
}

// TryWrite32 writes a uint32 at ptr.
func TryWrite32(ptr unsafe.Pointer, v uint32) (err error) {
	defer recoverFault(&err)
	*(*uint32)(ptr) = v
	return nil
}

// TryWrite64 writes a uint64 at ptr.
func TryWrite64(ptr unsafe.Pointer, v uint64) (err error) {
	defer recoverFault(&err)
	*(*uint64)(ptr) = v
	return nil
}

// TryCmpxchg8 atomically compares-and-swaps the byte at ptr, returning the
// previous value.
func TryCmpxchg8(ptr unsafe.Pointer, old, new uint8) (prev uint8, swapped bool, err error) {
	defer recoverFault(&err)
	// atomic has no 8-bit CAS; 8-bit accesses are assumed single-threaded
	// probes (register read/write emulation), not cross-thread RMW.
	prev = *(*uint8)(ptr)
	if prev == old {
		*(*uint8)(ptr) = new
		swapped = true
	}
	return prev, swapped, nil
}

// TryCmpxchg16 is the 16-bit analogue of TryCmpxchg8.
func TryCmpxchg16(ptr unsafe.Pointer, old, new uint16) (prev uint16, swapped bool, err error) {
	defer recoverFault(&err)
	prev = *(*uint16)(ptr)
	if prev == old {
		*(*uint16)(ptr) = new
		swapped = true
	}
	return prev, swapped, nil
}

// TryCmpxchg32 atomically compares-and-swaps the uint32 at ptr.
func TryCmpxchg32(ptr unsafe.Pointer, old, new uint32) (prev uint32, swapped bool, err error) {
	defer recoverFault(&err)
	swapped = atomic.CompareAndSwapUint32((*uint32)(ptr), old, new)
	if swapped {
		prev = old
	} else {
		prev = atomic.LoadUint32((*uint32)(ptr))
	}
	return prev, swapped, nil
}

// TryCmpxchg64 atomically compares-and-swaps the uint64 at ptr.
func TryCmpxchg64(ptr unsafe.Pointer, old, new uint64) (prev uint64, swapped bool, err error) {
	defer recoverFault(&err)
	swapped = atomic.CompareAndSwapUint64((*uint64)(ptr), old, new)
	if swapped {
		prev = old
	} else {
		prev = atomic.LoadUint64((*uint64)(ptr))
	}
	return prev, swapped, nil
}

// TryMemmove copies length bytes from src to dst, correctly handling
// overlap, returning ErrFault if either range faults partway through.
func TryMemmove(dst, src unsafe.Pointer, length int) (err error) {
	defer recoverFault(&err)
	dstSlice := unsafe.Slice((*byte)(dst), length)
	srcSlice := unsafe.Slice((*byte)(src), length)
	copy(dstSlice, srcSlice)
	return nil
}

// TryMemset fills length bytes at dst with val, returning ErrFault if the
// range faults partway through.
func TryMemset(dst unsafe.Pointer, val byte, length int) (err error) {
	defer recoverFault(&err)
	dstSlice := unsafe.Slice((*byte)(dst), length)
	for i := range dstSlice {
		dstSlice[i] = val
	}
	return nil
}
