package hvcall

import (
	"encoding/binary"
	"errors"
)

// RegisterName identifies a virtual-processor register.
type RegisterName uint32

const (
	RegisterVsmVpStatus         RegisterName = 0x000d0003
	RegisterVsmPartitionConfig RegisterName = 0x000d0002
)

const (
	partitionIDSelf = ^uint64(0)
	vpIndexSelf     = ^uint32(0)
)

// getSetVpRegistersHeader is the fixed-size prefix both GetVpRegisters
// and SetVpRegisters share: partition id, VP index, target VTL.
type getSetVpRegistersHeader struct {
	partitionID uint64
	vpIndex     uint32
	targetVtl   uint8
	_           [3]byte
}

func (h getSetVpRegistersHeader) encode(buf []byte) int {
	binary.LittleEndian.PutUint64(buf[0:8], h.partitionID)
	binary.LittleEndian.PutUint32(buf[8:12], h.vpIndex)
	buf[12] = h.targetVtl
	return 16
}

func inputVtlByte(vtl InputVtl) uint8 {
	if !vtl.UseTargetVtl {
		return 0
	}
	// bit 7 set marks "use target vtl", low bits hold the VTL number,
	// matching HvInputVtl's bitfield layout.
	return 0x80 | uint8(vtl.TargetVtl)
}

// GetRegister reads the current value of name in the VP register set for
// vtl (CurrentVtl for the caller's own VTL).
func (c *Call) GetRegister(name RegisterName, vtl InputVtl) (uint64, error) {
	header := getSetVpRegistersHeader{
		partitionID: partitionIDSelf,
		vpIndex:     vpIndexSelf,
		targetVtl:   inputVtlByte(vtl),
	}
	in := c.input.buffer()
	n := header.encode(in)
	binary.LittleEndian.PutUint32(in[n:n+4], uint32(name))

	status := c.dispatchHvcall(CodeGetVpRegisters, 1)
	if status != HvErrorSuccess {
		return 0, status
	}
	out := c.output.buffer()
	return binary.LittleEndian.Uint64(out[0:8]), nil
}

// SetRegister writes value to name in the VP register set for vtl.
func (c *Call) SetRegister(name RegisterName, value uint64, vtl InputVtl) error {
	header := getSetVpRegistersHeader{
		partitionID: partitionIDSelf,
		vpIndex:     vpIndexSelf,
		targetVtl:   inputVtlByte(vtl),
	}
	in := c.input.buffer()
	n := header.encode(in)
	binary.LittleEndian.PutUint32(in[n:n+4], uint32(name))
	binary.LittleEndian.PutUint64(in[n+8:n+16], value)

	status := c.dispatchHvcall(CodeSetVpRegisters, 1)
	if status != HvErrorSuccess {
		return status
	}
	return nil
}

// activeVtlFromStatus extracts the active VTL from a VsmVpStatus register
// value (bits 0-3).
func activeVtlFromStatus(status uint64) Vtl {
	return Vtl(status & 0xf)
}

// Vtl returns the VTL the caller is currently executing in.
func (c *Call) Vtl() Vtl {
	v, err := c.GetRegister(RegisterVsmVpStatus, CurrentVtl)
	if err != nil {
		return Vtl0
	}
	return activeVtlFromStatus(v)
}

// EnablePartitionVtl enables targetVtl for partitionID. It is idempotent:
// HvErrorVtlAlreadyEnabled is treated as success, since a caller that
// doesn't know whether a previous boot stage already enabled the VTL
// should be able to call this unconditionally.
func (c *Call) EnablePartitionVtl(partitionID uint64, targetVtl Vtl) error {
	in := c.input.buffer()
	binary.LittleEndian.PutUint64(in[0:8], partitionID)
	in[8] = uint8(targetVtl)
	// flags: enable_mbec=false, enable_supervisor_shadow_stack=false
	in[9] = 0

	status := c.dispatchHvcall(CodeEnablePartitionVtl, 0)
	if status == HvErrorSuccess || status == HvErrorVtlAlreadyEnabled {
		return nil
	}
	return status
}

// EnableVtlProtection turns on VTL memory protection enforcement for vtl,
// with the default protection mask denying all access to lower VTLs
// until explicitly granted.
func (c *Call) EnableVtlProtection(vtl InputVtl) error {
	const defaultProtectionMask = 0xf
	const enableVtlProtectionBit = uint64(1) << 0
	value := enableVtlProtectionBit | (uint64(defaultProtectionMask) << 1)
	return c.SetRegister(RegisterVsmPartitionConfig, value, vtl)
}

var errRangeEmpty = errors.New("hvcall: empty memory range")

const modifyVtlProtectionHeaderSize = 24 // partition id(8) + map flags(4) + target vtl(4) + reserved(8)

// ApplyVtlProtections removes access (HV_MAP_GPA_PERMISSIONS_NONE) to the
// guest page range [startGpn, endGpn) for vtl, chunking the call so each
// hypercall's input page holds no more GPNs than fit after the fixed
// header, exactly as the original's apply_vtl_protections loop does.
func (c *Call) ApplyVtlProtections(startGpn, endGpn uint64, vtl Vtl) error {
	if endGpn <= startGpn {
		return errRangeEmpty
	}
	const maxInputElements = (pageSize - modifyVtlProtectionHeaderSize) / 8

	in := c.input.buffer()
	current := startGpn
	for current < endGpn {
		remaining := endGpn - current
		count := remaining
		if count > maxInputElements {
			count = maxInputElements
		}

		binary.LittleEndian.PutUint64(in[0:8], partitionIDSelf)
		binary.LittleEndian.PutUint32(in[8:12], 0) // HV_MAP_GPA_PERMISSIONS_NONE
		in[12] = uint8(vtl)
		in[13] = 0x80 // use_target_vtl

		offset := modifyVtlProtectionHeaderSize
		for i := uint64(0); i < count; i++ {
			binary.LittleEndian.PutUint64(in[offset:offset+8], current+i)
			offset += 8
		}

		if status := c.dispatchHvcall(CodeModifyVtlProtectionMask, int(count)); status != HvErrorSuccess {
			return status
		}
		current += count
	}
	return nil
}
