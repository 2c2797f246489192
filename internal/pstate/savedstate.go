package pstate

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/openhcl/paravisor-core/internal/memtag"
)

// MemoryRange is a [Start, End) guest-physical range, matching the
// original's memory_range::MemoryRange.
type MemoryRange struct {
	Start uint64
	End   uint64
}

// MemoryEntry describes one range of partition memory: which NUMA node it
// belongs to and which VTL (and original host-reported IGVM type) it is
// assigned to.
type MemoryEntry struct {
	Range    MemoryRange
	Vnode    uint32
	VtlType  memtag.Tag
	IgvmType uint16
}

// MmioEntry describes one range of partition MMIO space.
type MmioEntry struct {
	Range   MemoryRange
	VtlType memtag.Tag
}

// SavedState is the full protobuf payload persisted across a boot,
// matching the original's openhcl_boot::save_restore::SavedState.
type SavedState struct {
	PartitionMemory []MemoryEntry
	PartitionMmio   []MmioEntry
}

// Field numbers match the original's #[mesh(N)] tags exactly, so a payload
// written by one implementation parses identically in the other.
const (
	fieldSavedStatePartitionMemory = 1
	fieldSavedStatePartitionMmio   = 2

	fieldMemoryEntryRange    = 1
	fieldMemoryEntryVnode    = 2
	fieldMemoryEntryVtlType  = 3
	fieldMemoryEntryIgvmType = 4

	fieldMmioEntryRange   = 1
	fieldMmioEntryVtlType = 2

	fieldRangeStart = 1
	fieldRangeEnd   = 2
)

// Marshal encodes s as a protobuf message.
func (s SavedState) Marshal() []byte {
	var b []byte
	for _, e := range s.PartitionMemory {
		b = protowire.AppendTag(b, fieldSavedStatePartitionMemory, protowire.BytesType)
		b = protowire.AppendBytes(b, e.marshal())
	}
	for _, e := range s.PartitionMmio {
		b = protowire.AppendTag(b, fieldSavedStatePartitionMmio, protowire.BytesType)
		b = protowire.AppendBytes(b, e.marshal())
	}
	return b
}

// UnmarshalSavedState decodes a protobuf-encoded SavedState payload.
func UnmarshalSavedState(data []byte) (SavedState, error) {
	var s SavedState
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return SavedState{}, fmt.Errorf("pstate: malformed SavedState tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if typ != protowire.BytesType {
			return SavedState{}, fmt.Errorf("pstate: unexpected wire type %v for field %d", typ, num)
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return SavedState{}, fmt.Errorf("pstate: malformed SavedState field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldSavedStatePartitionMemory:
			e, err := unmarshalMemoryEntry(v)
			if err != nil {
				return SavedState{}, err
			}
			s.PartitionMemory = append(s.PartitionMemory, e)
		case fieldSavedStatePartitionMmio:
			e, err := unmarshalMmioEntry(v)
			if err != nil {
				return SavedState{}, err
			}
			s.PartitionMmio = append(s.PartitionMmio, e)
		}
	}
	return s, nil
}

func (e MemoryEntry) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldMemoryEntryRange, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Range.marshal())
	b = protowire.AppendTag(b, fieldMemoryEntryVnode, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Vnode))
	b = protowire.AppendTag(b, fieldMemoryEntryVtlType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.VtlType))
	b = protowire.AppendTag(b, fieldMemoryEntryIgvmType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.IgvmType))
	return b
}

func unmarshalMemoryEntry(data []byte) (MemoryEntry, error) {
	var e MemoryEntry
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return MemoryEntry{}, fmt.Errorf("pstate: malformed MemoryEntry tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case fieldMemoryEntryRange:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 || typ != protowire.BytesType {
				return MemoryEntry{}, fmt.Errorf("pstate: malformed MemoryEntry.range")
			}
			data = data[n:]
			r, err := unmarshalRange(v)
			if err != nil {
				return MemoryEntry{}, err
			}
			e.Range = r
		case fieldMemoryEntryVnode:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 || typ != protowire.VarintType {
				return MemoryEntry{}, fmt.Errorf("pstate: malformed MemoryEntry.vnode")
			}
			data = data[n:]
			e.Vnode = uint32(v)
		case fieldMemoryEntryVtlType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 || typ != protowire.VarintType {
				return MemoryEntry{}, fmt.Errorf("pstate: malformed MemoryEntry.vtl_type")
			}
			data = data[n:]
			e.VtlType = memtag.Tag(v)
		case fieldMemoryEntryIgvmType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 || typ != protowire.VarintType {
				return MemoryEntry{}, fmt.Errorf("pstate: malformed MemoryEntry.igvm_type")
			}
			data = data[n:]
			e.IgvmType = uint16(v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return MemoryEntry{}, fmt.Errorf("pstate: malformed MemoryEntry unknown field %d", num)
			}
			data = data[n:]
		}
	}
	return e, nil
}

func (e MmioEntry) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldMmioEntryRange, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Range.marshal())
	b = protowire.AppendTag(b, fieldMmioEntryVtlType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.VtlType))
	return b
}

func unmarshalMmioEntry(data []byte) (MmioEntry, error) {
	var e MmioEntry
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return MmioEntry{}, fmt.Errorf("pstate: malformed MmioEntry tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case fieldMmioEntryRange:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 || typ != protowire.BytesType {
				return MmioEntry{}, fmt.Errorf("pstate: malformed MmioEntry.range")
			}
			data = data[n:]
			r, err := unmarshalRange(v)
			if err != nil {
				return MmioEntry{}, err
			}
			e.Range = r
		case fieldMmioEntryVtlType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 || typ != protowire.VarintType {
				return MmioEntry{}, fmt.Errorf("pstate: malformed MmioEntry.vtl_type")
			}
			data = data[n:]
			e.VtlType = memtag.Tag(v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return MmioEntry{}, fmt.Errorf("pstate: malformed MmioEntry unknown field %d", num)
			}
			data = data[n:]
		}
	}
	return e, nil
}

func (r MemoryRange) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRangeStart, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Start)
	b = protowire.AppendTag(b, fieldRangeEnd, protowire.VarintType)
	b = protowire.AppendVarint(b, r.End)
	return b
}

func unmarshalRange(data []byte) (MemoryRange, error) {
	var r MemoryRange
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return MemoryRange{}, fmt.Errorf("pstate: malformed MemoryRange tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if typ != protowire.VarintType {
			return MemoryRange{}, fmt.Errorf("pstate: unexpected wire type %v for MemoryRange field %d", typ, num)
		}
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return MemoryRange{}, fmt.Errorf("pstate: malformed MemoryRange field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case fieldRangeStart:
			r.Start = v
		case fieldRangeEnd:
			r.End = v
		}
	}
	return r, nil
}
