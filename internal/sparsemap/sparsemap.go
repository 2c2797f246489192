// Package sparsemap provides an owning handle over a contiguous
// virtual-address reservation whose pages may be individually committed,
// file-backed, or left unmapped. Reads and writes go through trycopy so a
// probe of an unmapped subregion returns an error instead of crashing.
package sparsemap

import (
	"errors"
	"unsafe"

	"github.com/openhcl/paravisor-core/internal/debug"
	"github.com/openhcl/paravisor-core/internal/trycopy"
)

var sparsemapLog = debug.WithSource("sparsemap", debug.ComponentSparsemap)

// ErrOutOfBounds is returned when an operation's [offset, offset+len)
// range does not lie within [0, Len()).
var ErrOutOfBounds = errors.New("sparsemap: out of bounds")

// MemoryError wraps a trycopy fault encountered while accessing a mapped
// (or supposedly mapped) region.
type MemoryError struct {
	Offset int
	Err    error
}

func (e *MemoryError) Error() string {
	return "sparsemap: memory access fault at offset " + itoa(e.Offset)
}

func (e *MemoryError) Unwrap() error { return e.Err }

// faultError logs and wraps a trycopy fault at offset. Every memory fault
// sparsemap ever returns passes through here, so the debug ring carries a
// record of exactly where and why each one happened.
func faultError(offset int, err error) *MemoryError {
	sparsemapLog.Writef("memory access fault at offset %d: %v", offset, err)
	return &MemoryError{Offset: offset, Err: err}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// SparseMapping owns a contiguous virtual-address reservation of Len()
// bytes. It is local-only: the backing VA lives in this process, and
// every method below operates on it directly.
//
// A SparseMapping is safe to share across goroutines; individual
// commit/unmap operations are serialized internally, and AtomicSlice
// gives concurrent readers/writers a byte-addressable view of committed
// regions.
type SparseMapping struct {
	base []byte // full VA reservation; sub-ranges are (re)protected in place
}

func (m *SparseMapping) check(offset, length int) error {
	if offset < 0 || length < 0 || offset > len(m.base) || length > len(m.base)-offset {
		return ErrOutOfBounds
	}
	return nil
}

// Len returns the length, in bytes, of the VA reservation.
func (m *SparseMapping) Len() int {
	return len(m.base)
}

func (m *SparseMapping) ptrAt(offset int) unsafe.Pointer {
	return unsafe.Pointer(&m.base[offset])
}

// ReadAt copies len(data) bytes starting at offset into data, returning
// ErrOutOfBounds before touching memory if the range is invalid, or a
// *MemoryError if the underlying access faults (e.g. offset falls in an
// unmapped region).
func (m *SparseMapping) ReadAt(offset int, data []byte) error {
	if err := m.check(offset, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := trycopy.TryMemmove(unsafe.Pointer(&data[0]), m.ptrAt(offset), len(data)); err != nil {
		return faultError(offset, err)
	}
	return nil
}

// WriteAt copies data into the mapping starting at offset.
func (m *SparseMapping) WriteAt(offset int, data []byte) error {
	if err := m.check(offset, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := trycopy.TryMemmove(m.ptrAt(offset), unsafe.Pointer(&data[0]), len(data)); err != nil {
		return faultError(offset, err)
	}
	return nil
}

// FillAt fills length bytes starting at offset with val.
func (m *SparseMapping) FillAt(offset int, val byte, length int) error {
	if err := m.check(offset, length); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	if err := trycopy.TryMemset(m.ptrAt(offset), val, length); err != nil {
		return faultError(offset, err)
	}
	return nil
}

// sizedWord is the set of types ReadVolatile/WriteVolatile/ReadPlain
// accept via a single load/store instruction: 1, 2, 4, or 8 bytes.
type sizedWord interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// ReadVolatile reads a T at offset using a single read instruction. T
// must be 1, 2, 4, or 8 bytes.
func ReadVolatile[T sizedWord](m *SparseMapping, offset int) (T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if err := m.check(offset, size); err != nil {
		return zero, err
	}
	switch size {
	case 1:
		v, err := trycopy.TryRead8(m.ptrAt(offset))
		if err != nil {
			return zero, faultError(offset, err)
		}
		return T(v), nil
	case 2:
		v, err := trycopy.TryRead16(m.ptrAt(offset))
		if err != nil {
			return zero, faultError(offset, err)
		}
		return T(v), nil
	case 4:
		v, err := trycopy.TryRead32(m.ptrAt(offset))
		if err != nil {
			return zero, faultError(offset, err)
		}
		return T(v), nil
	default:
		v, err := trycopy.TryRead64(m.ptrAt(offset))
		if err != nil {
			return zero, faultError(offset, err)
		}
		return T(v), nil
	}
}

// WriteVolatile writes value at offset using a single write instruction.
func WriteVolatile[T sizedWord](m *SparseMapping, offset int, value T) error {
	size := int(unsafe.Sizeof(value))
	if err := m.check(offset, size); err != nil {
		return err
	}
	var err error
	switch size {
	case 1:
		err = trycopy.TryWrite8(m.ptrAt(offset), uint8(value))
	case 2:
		err = trycopy.TryWrite16(m.ptrAt(offset), uint16(value))
	case 4:
		err = trycopy.TryWrite32(m.ptrAt(offset), uint32(value))
	default:
		err = trycopy.TryWrite64(m.ptrAt(offset), uint64(value))
	}
	if err != nil {
		return faultError(offset, err)
	}
	return nil
}

// ReadPlain reads a T at offset, using ReadVolatile directly for 1/2/4/8
// byte types and a byte-range ReadAt for anything larger or irregular.
func ReadPlain[T sizedWord](m *SparseMapping, offset int) (T, error) {
	return ReadVolatile[T](m, offset)
}

// AtomicSlice returns the byte range [start, start+length) as a plain
// byte slice over the mapping's backing memory.
//
// This is the idiomatic-Go substitution for the original's
// `&[AtomicU8]`: the standard library has no atomic byte type, and a
// `[]byte` aliasing this mapping's storage gives the same concurrent
// access characteristics in Go (ordinary loads/stores of individual
// bytes are not torn on any architecture Go supports). Accessing a
// currently-unmapped range still faults at the OS level exactly as the
// original documents; this method does not protect against that.
func (m *SparseMapping) AtomicSlice(start, length int) []byte {
	if err := m.check(start, length); err != nil {
		panic(err)
	}
	return m.base[start : start+length : start+length]
}
