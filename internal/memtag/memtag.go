// Package memtag defines the memory-type tags shared by the bootshim memory
// map and the persisted-state payload handed from bootshim to usermode.
package memtag

import "fmt"

// Tag identifies the purpose of a guest-physical memory region.
type Tag uint32

const (
	// Invalid marks the zero value so an unset Tag is never mistaken for VTL0.
	Invalid Tag = iota
	VTL0
	VTL2RAM
	VTL2Config
	VTL2SidecarImage
	VTL2SidecarNode
	VTL0MMIO
	VTL2MMIO
	VTL2Reserved
	VTL2GpaPool
	VTL2TdxPageTables
	VTL2BootshimLogBuffer
	VTL2PersistedStateHeader
	VTL2PersistedStateProtobuf
)

var names = map[Tag]string{
	Invalid:                    "invalid",
	VTL0:                       "VTL0",
	VTL2RAM:                    "VTL2_RAM",
	VTL2Config:                 "VTL2_CONFIG",
	VTL2SidecarImage:           "VTL2_SIDECAR_IMAGE",
	VTL2SidecarNode:            "VTL2_SIDECAR_NODE",
	VTL0MMIO:                   "VTL0_MMIO",
	VTL2MMIO:                   "VTL2_MMIO",
	VTL2Reserved:               "VTL2_RESERVED",
	VTL2GpaPool:                "VTL2_GPA_POOL",
	VTL2TdxPageTables:          "VTL2_TDX_PAGE_TABLES",
	VTL2BootshimLogBuffer:      "VTL2_BOOTSHIM_LOG_BUFFER",
	VTL2PersistedStateHeader:   "VTL2_PERSISTED_STATE_HEADER",
	VTL2PersistedStateProtobuf: "VTL2_PERSISTED_STATE_PROTOBUF",
}

// String implements fmt.Stringer.
func (t Tag) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return fmt.Sprintf("Tag(%d)", uint32(t))
}

// Region pairs a tag with the guest-physical range it describes.
type Region struct {
	Tag   Tag
	Start uint64
	Len   uint64
}

// End returns the first guest-physical address past the region.
func (r Region) End() uint64 {
	return r.Start + r.Len
}

// Overlaps reports whether r and o describe intersecting guest-physical ranges.
func (r Region) Overlaps(o Region) bool {
	return r.Start < o.End() && o.Start < r.End()
}
