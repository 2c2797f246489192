package hyperv

import (
	"github.com/openhcl/paravisor-core/internal/hvcall"
	"github.com/openhcl/paravisor-core/internal/tmk"
)

// VtlSwitcher issues the architecture-specific instruction that actually
// transfers the running hardware thread between VTLs (vtl_call/
// vtl_return). Concrete implementations live behind the same device
// transport as hvcall.Invoker, since usermode on both Linux and Windows
// VTL2 hosts reaches this through the kernel rather than a bare
// instruction.
type VtlSwitcher interface {
	SwitchToHighVtl()
	SwitchToLowVtl()
}

// noopSwitcher is used by Context values constructed without an explicit
// switcher (e.g. in tests); it records the request but performs no
// transition.
type noopSwitcher struct {
	highRequests int
	lowRequests  int
}

func (s *noopSwitcher) SwitchToHighVtl() { s.highRequests++ }
func (s *noopSwitcher) SwitchToLowVtl()  { s.lowRequests++ }

func (c *Context) switcher() VtlSwitcher {
	if c.Switcher == nil {
		c.Switcher = &noopSwitcher{}
	}
	return c.Switcher
}

// ApplyVtlProtectionForMemory applies VTL memory protection to
// [startGpa, endGpa) for vtl.
func (c *Context) ApplyVtlProtectionForMemory(startGpa, endGpa uint64, vtl hvcall.Vtl) error {
	startGpn, endGpn := startGpa/4096, endGpa/4096
	if err := c.Call.ApplyVtlProtections(startGpn, endGpn, vtl); err != nil {
		return tmk.FromHvError(err, hvlog.AtVtl(toDebugVtl(vtl)).Writef)
	}
	return nil
}

// EnableVpVtlWithDefaultContext enables vtl on vpIndex with a platform
// default register context.
func (c *Context) EnableVpVtlWithDefaultContext(vpIndex uint32, vtl hvcall.Vtl) error {
	if err := c.Call.EnablePartitionVtl(0, vtl); err != nil {
		return tmk.FromHvError(err, hvlog.AtVtl(toDebugVtl(vtl)).Writef)
	}
	return nil
}

// CurrentVtl returns the VTL the caller is currently executing in.
func (c *Context) CurrentVtl() (hvcall.Vtl, error) {
	return c.Call.Vtl(), nil
}

// SetupPartitionVtl performs partition-wide initialization for vtl.
func (c *Context) SetupPartitionVtl(vtl hvcall.Vtl) error {
	if err := c.Call.EnablePartitionVtl(0, vtl); err != nil {
		return tmk.FromHvError(err, hvlog.AtVtl(toDebugVtl(vtl)).Writef)
	}
	return nil
}

// SetupVtlProtection enables VTL protection enforcement for the
// context's own VTL.
func (c *Context) SetupVtlProtection() error {
	if err := c.Call.EnableVtlProtection(hvcall.CurrentVtl); err != nil {
		return tmk.FromHvError(err, hvlog.AtVtl(toDebugVtl(c.Vtl)).Writef)
	}
	return nil
}

// SwitchToHighVtl transfers the running hardware thread to the higher
// privileged VTL.
func (c *Context) SwitchToHighVtl() { c.switcher().SwitchToHighVtl() }

// SwitchToLowVtl transfers the running hardware thread back to the lower
// privileged VTL.
func (c *Context) SwitchToLowVtl() { c.switcher().SwitchToLowVtl() }

// SetVpRegisterWithVtl writes value to reg in vtl's register set.
func (c *Context) SetVpRegisterWithVtl(reg hvcall.RegisterName, value uint64, vtl hvcall.Vtl) error {
	input := hvcall.InputVtl{TargetVtl: vtl, UseTargetVtl: true}
	if err := c.Call.SetRegister(reg, value, input); err != nil {
		return tmk.FromHvError(err, hvlog.AtVtl(toDebugVtl(vtl)).Writef)
	}
	return nil
}

// GetVpRegisterWithVtl reads reg from vtl's register set.
func (c *Context) GetVpRegisterWithVtl(reg hvcall.RegisterName, vtl hvcall.Vtl) (uint64, error) {
	input := hvcall.InputVtl{TargetVtl: vtl, UseTargetVtl: true}
	v, err := c.Call.GetRegister(reg, input)
	if err != nil {
		return 0, tmk.FromHvError(err, hvlog.AtVtl(toDebugVtl(vtl)).Writef)
	}
	return v, nil
}
