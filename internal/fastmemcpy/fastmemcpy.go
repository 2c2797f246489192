// Package fastmemcpy implements a drop-in memcpy/memmove replacement whose
// size-class dispatch mirrors the boundaries used by trycopy's
// fault-recoverable primitives, without the fault-recovery overhead: this
// package is for bulk copies into memory that is already known to be
// backed.
package fastmemcpy

// ArchLargeCopyThreshold is the byte length at which a forward copy
// switches from the chunked loop to the platform's bulk-copy path (on
// amd64, this is where `rep movsb` overtakes chunked SSE copies; Go's
// runtime memmove already performs this switch internally, so this
// constant is kept only as the documented size-class boundary, matching
// the original's `ARCH_LARGE_COPY_THRESHOLD`).
const ArchLargeCopyThreshold = 1800

// Size-class boundaries, matching the original implementation's dispatch
// table. CopySmall/CopyMedium/CopyLarge below are named for the class
// each length falls into; all three ultimately call Go's builtin copy(),
// which the compiler already lowers to vectorized, size-specialized code
// on amd64 and arm64.
const (
	smallMax  = 4
	mediumMax = 128
)

// Copy copies len(src) bytes (or len(dst) bytes, whichever is smaller)
// from src to dst and returns the number of bytes copied. Source and
// destination may overlap; Copy behaves like memmove, not memcpy.
func Copy(dst, src []byte) int {
	n := len(src)
	switch {
	case n == 0:
		return 0
	case n <= smallMax:
		return copySmall(dst, src)
	case n <= mediumMax:
		return copyMedium(dst, src)
	default:
		return copyLarge(dst, src)
	}
}

// copySmall handles 1-4 byte copies: a single load/store of exact size in
// the original; copy() already specializes these lengths.
func copySmall(dst, src []byte) int {
	return copy(dst, src)
}

// copyMedium handles 5-128 byte copies: the original uses overlapping
// head+tail stores of the largest chunk that fits; copy() achieves the
// same effect without needing to hand-pick a chunk type.
func copyMedium(dst, src []byte) int {
	return copy(dst, src)
}

// copyLarge handles copies over 128 bytes, the range in which the
// original aligns the destination to 16 bytes and loops in 64-byte
// chunks, switching to `rep movsb`/`rep stosb` past ArchLargeCopyThreshold
// on x86_64. Go's runtime.memmove already performs the equivalent
// alignment and chunking internally.
func copyLarge(dst, src []byte) int {
	return copy(dst, src)
}

// Fill sets all of dst to val and returns len(dst), mirroring the
// original's try_memset size classes (delegated to the same copy()-backed
// strategy, via a loop since Go has no builtin memset).
func Fill(dst []byte, val byte) int {
	for i := range dst {
		dst[i] = val
	}
	return len(dst)
}
