//go:build windows

package hvcall

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const argSize = unsafe.Sizeof(mshvHvcallArg{})

func argPtr(arg *mshvHvcallArg) unsafe.Pointer {
	return unsafe.Pointer(arg)
}

// vidHvcallIoctl is the VID.sys hypercall passthrough control code used by
// the Windows VTL2 host transport, the Windows analogue of Linux's
// /dev/mshv passthrough ioctl.
const vidHvcallIoctl = 0x8f000401

type mshvHvcallArg struct {
	Control   uint64
	InputAddr uint64
	OutputGpa uint64
	Status    uint64
}

// DeviceInvoker dispatches hypercalls through the VID device, the Windows
// VTL2-host transport for the privileged hypercall instruction.
type DeviceInvoker struct {
	h windows.Handle
}

// OpenDevice opens the VID device for hypercall passthrough.
func OpenDevice() (*DeviceInvoker, error) {
	path, err := windows.UTF16PtrFromString(`\\.\VID`)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(path, windows.GENERIC_READ|windows.GENERIC_WRITE, 0, nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("hvcall: open VID device: %w", err)
	}
	return &DeviceInvoker{h: h}, nil
}

// Close releases the VID device handle.
func (d *DeviceInvoker) Close() error {
	return windows.CloseHandle(d.h)
}

// Invoke implements Invoker.
func (d *DeviceInvoker) Invoke(control uint64, inputAddr, outputAddr uint64) uint64 {
	arg := mshvHvcallArg{Control: control, InputAddr: inputAddr, OutputGpa: outputAddr}
	var bytesReturned uint32
	err := windows.DeviceIoControl(d.h, vidHvcallIoctl, (*byte)(argPtr(&arg)), uint32(argSize), nil, 0, &bytesReturned, nil)
	if err != nil {
		return uint64(HvErrorOperationDenied)
	}
	return arg.Status
}
