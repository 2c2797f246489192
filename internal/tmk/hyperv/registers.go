package hyperv

import "github.com/openhcl/paravisor-core/internal/hvcall"

// SetRegister writes value to architecture register reg in the context's
// own VTL.
func (c *Context) SetRegister(reg uint32, value uint64) error {
	return c.SetVpRegisterWithVtl(hvcall.RegisterName(reg), value, c.Vtl)
}

// GetRegister reads architecture register reg from the context's own
// VTL.
func (c *Context) GetRegister(reg uint32) (uint64, error) {
	return c.GetVpRegisterWithVtl(hvcall.RegisterName(reg), c.Vtl)
}

// SetRegisterVtl writes value to reg in vtl's register set.
func (c *Context) SetRegisterVtl(reg uint32, value uint64, vtl hvcall.Vtl) error {
	return c.SetVpRegisterWithVtl(hvcall.RegisterName(reg), value, vtl)
}

// GetRegisterVtl reads reg from vtl's register set.
func (c *Context) GetRegisterVtl(reg uint32, vtl hvcall.Vtl) (uint64, error) {
	return c.GetVpRegisterWithVtl(hvcall.RegisterName(reg), vtl)
}

// msrRegisterBase maps an MSR number into the hypercall register
// namespace reserved for synthetic MSR proxy registers, since this
// context only ever runs with hypercall transport available (no inline
// rdmsr/wrmsr), mirroring how VTL2 software accesses architectural MSRs
// indirectly through the same register get/set hypercalls as everything
// else.
const msrRegisterBase = 0x40000000

// ReadMSR reads msr via the hypercall register interface.
func (c *Context) ReadMSR(msr uint32) (uint64, error) {
	return c.GetVpRegisterWithVtl(hvcall.RegisterName(msrRegisterBase+msr), c.Vtl)
}

// WriteMSR writes value to msr via the hypercall register interface.
func (c *Context) WriteMSR(msr uint32, value uint64) error {
	return c.SetVpRegisterWithVtl(hvcall.RegisterName(msrRegisterBase+msr), value, c.Vtl)
}
