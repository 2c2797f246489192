// Package fdt builds and parses Flattened Device Tree blobs: the bootshim
// reads host-supplied device-tree properties (including an optional VTL2
// GPA pool page count) from one, and can re-serialize a tree for tests.
package fdt

import "encoding/binary"

// Property describes a single device-tree property in a JSON-friendly form.
// Exactly one of the typed fields should be populated for a given property.
type Property struct {
	Strings []string `json:"strings,omitempty"`
	U32     []uint32 `json:"u32,omitempty"`
	U64     []uint64 `json:"u64,omitempty"`
	Bytes   []byte   `json:"bytes,omitempty"`
	Flag    bool     `json:"flag,omitempty"`
}

// Kind returns the name of the populated field or an empty string if none are set.
func (p Property) Kind() string {
	switch {
	case len(p.Strings) > 0:
		return "strings"
	case len(p.U32) > 0:
		return "u32"
	case len(p.U64) > 0:
		return "u64"
	case len(p.Bytes) > 0:
		return "bytes"
	case p.Flag:
		return "flag"
	default:
		return ""
	}
}

// DefinedCount reports how many distinct fields on the property are populated.
func (p Property) DefinedCount() int {
	count := 0
	if len(p.Strings) > 0 {
		count++
	}
	if len(p.U32) > 0 {
		count++
	}
	if len(p.U64) > 0 {
		count++
	}
	if len(p.Bytes) > 0 {
		count++
	}
	if p.Flag {
		count++
	}
	return count
}

// AsU32 returns the property's first u32 value, for properties expected to
// hold exactly one (e.g. a VTL2 GPA pool page count).
func (p Property) AsU32() (uint32, bool) {
	if len(p.U32) > 0 {
		return p.U32[0], true
	}
	if len(p.Bytes) == 4 {
		return binary.BigEndian.Uint32(p.Bytes), true
	}
	return 0, false
}

// AsU64 returns the property's first u64 value, falling back to
// big-endian interpretation of a raw 8-byte Bytes property (how Parse
// reports values it could not classify by length alone).
func (p Property) AsU64() (uint64, bool) {
	if len(p.U64) > 0 {
		return p.U64[0], true
	}
	if len(p.Bytes) == 8 {
		return binary.BigEndian.Uint64(p.Bytes), true
	}
	return 0, false
}

// Node describes a device-tree node using JSON-friendly structures.
type Node struct {
	Name       string              `json:"name"`
	Properties map[string]Property `json:"properties,omitempty"`
	Children   []Node              `json:"children,omitempty"`
}

// Find returns the child node with the given name, if present directly
// under this node.
func (n Node) Find(name string) (Node, bool) {
	for _, child := range n.Children {
		if child.Name == name {
			return child, true
		}
	}
	return Node{}, false
}
