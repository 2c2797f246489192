//go:build linux

package hvcall

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func uintptrOf(arg *mshvHvcallArg) uintptr {
	return uintptr(unsafe.Pointer(arg))
}

// ioctl issues a single ioctl, retrying on EINTR, the same helper shape
// as the KVM backend's ioctlWithRetry.
func ioctl(fd uintptr, request uint64, arg uintptr) (uintptr, error) {
	for {
		v1, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(request), arg)
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return 0, errno
		}
		return v1, nil
	}
}

// mshvHvcallIoctl is the /dev/mshv hypercall passthrough request code:
// it hands the kernel a control word plus input/output page addresses
// and the kernel performs the actual VMCALL/HVC trap on the caller's
// behalf, since usermode on Linux VTL2 hosts cannot issue the privileged
// instruction directly.
const mshvHvcallIoctl = 0xc018b801

type mshvHvcallArg struct {
	Control   uint64
	InputAddr uint64
	OutputGpa uint64
	Status    uint64
}

// DeviceInvoker dispatches hypercalls through /dev/mshv, the Linux
// VTL2-host transport for the privileged hypercall instruction.
type DeviceInvoker struct {
	f *os.File
}

// OpenDevice opens /dev/mshv for hypercall passthrough.
func OpenDevice() (*DeviceInvoker, error) {
	f, err := os.OpenFile("/dev/mshv", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("hvcall: open /dev/mshv: %w", err)
	}
	return &DeviceInvoker{f: f}, nil
}

// Close releases the /dev/mshv handle.
func (d *DeviceInvoker) Close() error {
	return d.f.Close()
}

// Invoke implements Invoker.
func (d *DeviceInvoker) Invoke(control uint64, inputAddr, outputAddr uint64) uint64 {
	arg := mshvHvcallArg{Control: control, InputAddr: inputAddr, OutputGpa: outputAddr}
	if _, err := ioctl(d.f.Fd(), mshvHvcallIoctl, uintptrOf(&arg)); err != nil {
		return uint64(HvErrorOperationDenied)
	}
	return arg.Status
}
