package pstate_test

import (
	"encoding/hex"
	"testing"

	"github.com/openhcl/paravisor-core/internal/memtag"
	"github.com/openhcl/paravisor-core/internal/pstate"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("invalid hex fixture: %v", err)
	}
	return b
}

// TestEncryptBlockNISTVector replays NIST SP 800-38A F.5's first AES-256
// ECB block: key 603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4,
// plaintext 6bc1bee22e409f96e93d7e117393172a, expected ciphertext
// f3eed1bdb5d2a03c064b5a7e3db181f8.
func TestEncryptBlockNISTVector(t *testing.T) {
	var key [32]byte
	copy(key[:], mustHex(t, "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4"))
	var plaintext [16]byte
	copy(plaintext[:], mustHex(t, "6bc1bee22e409f96e93d7e117393172a"))
	want := mustHex(t, "f3eed1bdb5d2a03c064b5a7e3db181f8")

	got, err := pstate.EncryptBlock(key, plaintext)
	if err != nil {
		t.Fatalf("EncryptBlock: %v", err)
	}
	if hex.EncodeToString(got[:]) != hex.EncodeToString(want) {
		t.Fatalf("EncryptBlock = %x, want %x", got, want)
	}

	roundTrip, err := pstate.DecryptBlock(key, got)
	if err != nil {
		t.Fatalf("DecryptBlock: %v", err)
	}
	if roundTrip != plaintext {
		t.Fatalf("DecryptBlock(EncryptBlock(p)) = %x, want %x", roundTrip, plaintext)
	}
}

// TestHeaderRoundTrip replays S6: writing the header followed by a
// protobuf payload of length L, then reading it back, yields L bytes equal
// to the input; a magic mismatch is reported as "no prior state" (ok=false)
// rather than an error.
func TestHeaderRoundTrip(t *testing.T) {
	payload := pstate.SavedState{
		PartitionMemory: []pstate.MemoryEntry{
			{Range: pstate.MemoryRange{Start: 0x6000_0000, End: 0x6800_0000}, Vnode: 0, VtlType: memtag.VTL2RAM, IgvmType: 1},
		},
		PartitionMmio: []pstate.MmioEntry{
			{Range: pstate.MemoryRange{Start: 0xF000_0000, End: 0xF001_0000}, VtlType: memtag.VTL2MMIO},
		},
	}
	encoded := payload.Marshal()

	h := pstate.Header{
		Magic:              pstate.Magic(),
		ProtobufBase:       pstate.HeaderSize,
		ProtobufRegionLen:  uint64(len(encoded)),
		ProtobufPayloadLen: uint64(len(encoded)),
	}
	region := append(h.Encode(), encoded...)

	gotHeader, ok, err := pstate.DecodeHeader(region[:pstate.HeaderSize])
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if !ok {
		t.Fatalf("DecodeHeader: ok = false, want true")
	}
	if gotHeader.ProtobufPayloadLen != uint64(len(encoded)) {
		t.Fatalf("ProtobufPayloadLen = %d, want %d", gotHeader.ProtobufPayloadLen, len(encoded))
	}

	payloadBytes := region[gotHeader.ProtobufBase : gotHeader.ProtobufBase+gotHeader.ProtobufPayloadLen]
	if len(payloadBytes) != len(encoded) {
		t.Fatalf("payload length = %d, want %d", len(payloadBytes), len(encoded))
	}

	gotPayload, err := pstate.UnmarshalSavedState(payloadBytes)
	if err != nil {
		t.Fatalf("UnmarshalSavedState: %v", err)
	}
	if len(gotPayload.PartitionMemory) != 1 || gotPayload.PartitionMemory[0].Range.Start != 0x6000_0000 {
		t.Fatalf("unexpected round-tripped memory entries: %+v", gotPayload.PartitionMemory)
	}
	if len(gotPayload.PartitionMmio) != 1 || gotPayload.PartitionMmio[0].VtlType != memtag.VTL2MMIO {
		t.Fatalf("unexpected round-tripped mmio entries: %+v", gotPayload.PartitionMmio)
	}
}

func TestDecodeHeaderMagicMismatchIsNoPriorState(t *testing.T) {
	buf := make([]byte, pstate.HeaderSize)
	_, ok, err := pstate.DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader on zeroed buffer: %v", err)
	}
	if ok {
		t.Fatalf("DecodeHeader on zeroed buffer: ok = true, want false (no prior state)")
	}
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	if _, _, err := pstate.DecodeHeader(make([]byte, 10)); err == nil {
		t.Fatalf("DecodeHeader accepted a buffer shorter than HeaderSize")
	}
}
