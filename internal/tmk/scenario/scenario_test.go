package scenario_test

import (
	"testing"

	"github.com/openhcl/paravisor-core/internal/tmk/scenario"
)

func TestLoadAllFileSeeds(t *testing.T) {
	manifests, err := scenario.LoadAllFile("testdata/seeds.yaml")
	if err != nil {
		t.Fatalf("LoadAllFile: %v", err)
	}
	if len(manifests) != 7 {
		t.Fatalf("got %d manifests, want 7", len(manifests))
	}

	byName := make(map[string]scenario.Manifest, len(manifests))
	for _, m := range manifests {
		byName[m.Name] = m
	}

	bump, ok := byName["S1-bump-allocator"]
	if !ok || bump.BumpAlloc == nil {
		t.Fatalf("missing or malformed S1-bump-allocator manifest")
	}
	if bump.BumpAlloc.ReservationBytes != 81920 {
		t.Fatalf("reservation_bytes = %d, want 81920", bump.BumpAlloc.ReservationBytes)
	}
	if len(bump.BumpAlloc.Allocations) != 3 {
		t.Fatalf("got %d allocations, want 3", len(bump.BumpAlloc.Allocations))
	}
	if bump.BumpAlloc.Allocations[2].Size != 32 {
		t.Fatalf("third allocation size = %d, want 32", bump.BumpAlloc.Allocations[2].Size)
	}

	aes, ok := byName["S2-aes256-ecb-nist-f5"]
	if !ok || aes.AESVector == nil {
		t.Fatalf("missing or malformed S2-aes256-ecb-nist-f5 manifest")
	}
	if aes.AESVector.CiphertextHex != "f3eed1bdb5d2a03c064b5a7e3db181f8" {
		t.Fatalf("ciphertext_hex = %q, want the NIST F.5 expected block", aes.AESVector.CiphertextHex)
	}

	dma, ok := byName["S3-dma-hint-6mib"]
	if !ok || dma.DMAHint == nil {
		t.Fatalf("missing or malformed S3-dma-hint-6mib manifest")
	}
	if dma.DMAHint.ExpectedPages != 2048 {
		t.Fatalf("expected_pages = %d, want 2048", dma.DMAHint.ExpectedPages)
	}

	ch, ok := byName["S4-priority-channel"]
	if !ok || ch.Channel == nil {
		t.Fatalf("missing or malformed S4-priority-channel manifest")
	}
	if len(ch.Channel.ExpectedRecv) != 2 || ch.Channel.ExpectedRecv[0] != 99 || ch.Channel.ExpectedRecv[1] != 1 {
		t.Fatalf("expected_recv = %v, want [99 1]", ch.Channel.ExpectedRecv)
	}

	mv, ok := byName["S5-memmove-copy-within"]
	if !ok || mv.Memmove == nil {
		t.Fatalf("missing or malformed S5-memmove-copy-within manifest")
	}
	if mv.Memmove.Base != 8000 {
		t.Fatalf("base = %d, want 8000", mv.Memmove.Base)
	}

	ps, ok := byName["S6-persisted-state-header"]
	if !ok || ps.Persisted == nil {
		t.Fatalf("missing or malformed S6-persisted-state-header manifest")
	}
	if ps.Persisted.Magic != "OHCLPHDR" {
		t.Fatalf("magic = %q, want OHCLPHDR", ps.Persisted.Magic)
	}
	if ps.Persisted.PayloadLen != 256 {
		t.Fatalf("payload_len = %d, want 256", ps.Persisted.PayloadLen)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	if _, err := scenario.Load([]byte("not: [valid yaml")); err == nil {
		t.Fatalf("Load accepted malformed YAML")
	}
}

func TestLoadFileMissingReturnsError(t *testing.T) {
	if _, err := scenario.LoadFile("testdata/does-not-exist.yaml"); err == nil {
		t.Fatalf("LoadFile accepted a missing path")
	}
}
