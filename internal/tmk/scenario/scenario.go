// Package scenario loads YAML-described seed scenarios for the test
// microkernel's integration harness: named, parameterized checks of a
// single component (bump allocator, DMA-hint engine, channel, memmove,
// persisted state) that a test binary can replay without recompiling.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is a single named seed scenario and its component-specific
// parameters. Exactly one of the *Params fields should be set, matching
// Component.
type Manifest struct {
	Name        string           `yaml:"name"`
	Component   string           `yaml:"component"`
	Description string           `yaml:"description,omitempty"`
	BumpAlloc   *BumpAllocParams `yaml:"bump_alloc,omitempty"`
	DMAHint     *DMAHintParams   `yaml:"dma_hint,omitempty"`
	Channel     *ChannelParams   `yaml:"channel,omitempty"`
	Memmove     *MemmoveParams   `yaml:"memmove,omitempty"`
	Persisted   *PersistedParams `yaml:"persisted,omitempty"`
	AESVector   *AESVectorParams `yaml:"aes_vector,omitempty"`
}

// AESVectorParams models S2: an AES-256-ECB single-block test vector,
// given as hex strings.
type AESVectorParams struct {
	KeyHex        string `yaml:"key_hex"`
	PlaintextHex  string `yaml:"plaintext_hex"`
	CiphertextHex string `yaml:"ciphertext_hex"`
}

// BumpAllocParams models S1: a reservation size plus a sequence of
// (offset-hint, size) allocation requests, verifying every result is
// non-null, correctly aligned, and monotonically increasing.
type BumpAllocParams struct {
	ReservationBytes int            `yaml:"reservation_bytes"`
	Allocations      []AllocRequest `yaml:"allocations"`
	ThenPushBytes    int            `yaml:"then_push_bytes,omitempty"`
	ThenResizeBytes  int            `yaml:"then_resize_bytes,omitempty"`
}

// AllocRequest is one (offset, size) pair from spec.md's S1: "allocate
// [100,8], [200,16], [300,32]". Offset is descriptive only (the bump
// allocator itself chooses addresses); it documents which request this
// is in a human-readable manifest.
type AllocRequest struct {
	Offset int `yaml:"offset"`
	Size   int `yaml:"size"`
}

// DMAHintParams models S3: a lookup-table selector, VP count, and memory
// size, with the expected DMA hint in pages.
type DMAHintParams struct {
	Table         string `yaml:"table"`
	VpCount       uint32 `yaml:"vp_count"`
	MemSizeBytes  uint64 `yaml:"mem_size_bytes"`
	ExpectedPages uint64 `yaml:"expected_pages"`
}

// ChannelParams models S4: an ordered sequence of send/send_priority
// operations, followed by the expected recv order.
type ChannelParams struct {
	Sends        []int `yaml:"sends"`
	Priority     []int `yaml:"priority"`
	ExpectedRecv []int `yaml:"expected_recv"`
}

// MemmoveParams models S5: copy data[base:base+length] to
// data[base+offset:], verified against slice copy-within semantics.
type MemmoveParams struct {
	Base    int   `yaml:"base"`
	Lengths []int `yaml:"lengths"`
	Offsets []int `yaml:"offsets"`
}

// PersistedParams models S6: writing a persisted-state header with a
// payload of PayloadLen bytes, then reading it back.
type PersistedParams struct {
	Magic        string `yaml:"magic"`
	PayloadLen   int    `yaml:"payload_len"`
	CorruptMagic bool   `yaml:"corrupt_magic,omitempty"`
}

// Load parses manifest YAML from data.
func Load(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("scenario: parsing manifest: %w", err)
	}
	return &m, nil
}

// LoadFile loads a manifest from a YAML file on disk.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: reading manifest file: %w", err)
	}
	return Load(data)
}

// LoadAllFile loads a YAML document containing a list of manifests
// (a scenario suite) from a single file.
func LoadAllFile(path string) ([]Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: reading suite file: %w", err)
	}
	var manifests []Manifest
	if err := yaml.Unmarshal(data, &manifests); err != nil {
		return nil, fmt.Errorf("scenario: parsing suite file: %w", err)
	}
	return manifests, nil
}
