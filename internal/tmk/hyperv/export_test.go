package hyperv_test

import "unsafe"

func unsafeSliceAt(addr uint64, length int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), length)
}
