package hvcall_test

import "unsafe"

func unsafeBytesAt(addr uint64, length int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), length)
}
