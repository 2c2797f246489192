package tmk

import "github.com/openhcl/paravisor-core/internal/hvcall"

// MsrPlatform abstracts model-specific-register access for platforms
// that support it.
type MsrPlatform interface {
	ReadMSR(msr uint32) (uint64, error)
	WriteMSR(msr uint32, value uint64) error
}

// VtlPlatform abstracts virtual-trust-level management: enabling VTLs,
// applying memory protection, and switching the executing hardware
// thread between VTLs.
type VtlPlatform interface {
	ApplyVtlProtectionForMemory(startGpa, endGpa uint64, vtl hvcall.Vtl) error
	EnableVpVtlWithDefaultContext(vpIndex uint32, vtl hvcall.Vtl) error
	CurrentVtl() (hvcall.Vtl, error)
	SetupPartitionVtl(vtl hvcall.Vtl) error
	SetupVtlProtection() error
	SwitchToHighVtl()
	SwitchToLowVtl()
	SetVpRegisterWithVtl(reg hvcall.RegisterName, value uint64, vtl hvcall.Vtl) error
	GetVpRegisterWithVtl(reg hvcall.RegisterName, vtl hvcall.Vtl) (uint64, error)
}

// VirtualProcessorPlatform abstracts VP enumeration and scheduling onto a
// VP. T is the platform's own context type passed to a queued command
// (mirroring the concrete type a command closure receives), constrained
// to also implement VtlPlatform so a command can switch VTLs or touch VP
// registers from within its closure.
type VirtualProcessorPlatform[T VtlPlatform] interface {
	CurrentVp() (uint32, error)
	SetRegister(reg uint32, value uint64) error
	GetRegister(reg uint32) (uint64, error)
	SetRegisterVtl(reg uint32, value uint64, vtl hvcall.Vtl) error
	GetRegisterVtl(reg uint32, vtl hvcall.Vtl) (uint64, error)
	VpCount() (uint32, error)
	QueueCommandVp(tok VpExecToken[T]) error
	StartOnVp(tok VpExecToken[T]) error
	StartRunningVpWithDefaultContext(tok VpExecToken[T]) error
}

// VpExecToken describes a command to run on a specific VP and VTL. The
// command is an ordinary closure rather than a boxed trait object, since
// Go closures already capture their environment on the heap.
type VpExecToken[T any] struct {
	VpIndex uint32
	Vtl     hvcall.Vtl
	cmd     func(*T)
}

// NewVpExecToken creates a token targeting vpIndex running in vtl.
func NewVpExecToken[T any](vpIndex uint32, vtl hvcall.Vtl) VpExecToken[T] {
	return VpExecToken[T]{VpIndex: vpIndex, Vtl: vtl}
}

// WithCommand attaches the closure to run on the target VP, returning the
// token for chaining.
func (t VpExecToken[T]) WithCommand(cmd func(*T)) VpExecToken[T] {
	t.cmd = cmd
	return t
}

// Command returns the attached closure, or nil if none was set.
func (t VpExecToken[T]) Command() func(*T) {
	return t.cmd
}
