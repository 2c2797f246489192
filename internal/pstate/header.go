// Package pstate implements the persisted-state region handed from the
// bootshim to usermode across a boot: a fixed 4 KiB header describing a
// following protobuf payload, plus the payload's own schema and a
// confidential-debug encryption helper for logging it safely.
package pstate

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size of the persisted-state header region.
const HeaderSize = 4096

// magic is "OHCLPHDR" packed little-endian into a u64, matching the
// original's `u64::from_le_bytes(*b"OHCLPHDR")`.
var magic = binary.LittleEndian.Uint64([]byte("OHCLPHDR"))

// Header is the fixed-layout region found at a well-known guest-physical
// address at the start of every boot. A Magic that doesn't match Magic()
// means the previous instance did not leave behind a persisted state (or
// this is the first boot).
type Header struct {
	Magic              uint64
	ProtobufBase       uint64
	ProtobufRegionLen  uint64
	ProtobufPayloadLen uint64
}

// Magic returns the expected magic value for a valid header.
func Magic() uint64 { return magic }

// Encode serializes h into a HeaderSize-byte buffer, zero-padded after the
// four fields.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.Magic)
	binary.LittleEndian.PutUint64(buf[8:16], h.ProtobufBase)
	binary.LittleEndian.PutUint64(buf[16:24], h.ProtobufRegionLen)
	binary.LittleEndian.PutUint64(buf[24:32], h.ProtobufPayloadLen)
	return buf
}

// DecodeHeader parses a HeaderSize-byte (or larger) buffer into a Header.
// ok is false if the magic does not match, meaning "no prior state";
// callers must not treat the rest of the fields as meaningful in that case.
func DecodeHeader(buf []byte) (h Header, ok bool, err error) {
	if len(buf) < HeaderSize {
		return Header{}, false, fmt.Errorf("pstate: header buffer too short (%d bytes, want >= %d)", len(buf), HeaderSize)
	}
	h.Magic = binary.LittleEndian.Uint64(buf[0:8])
	if h.Magic != magic {
		return h, false, nil
	}
	h.ProtobufBase = binary.LittleEndian.Uint64(buf[8:16])
	h.ProtobufRegionLen = binary.LittleEndian.Uint64(buf[16:24])
	h.ProtobufPayloadLen = binary.LittleEndian.Uint64(buf[24:32])
	if h.ProtobufPayloadLen > h.ProtobufRegionLen {
		return h, false, fmt.Errorf("pstate: payload length %d exceeds region length %d", h.ProtobufPayloadLen, h.ProtobufRegionLen)
	}
	return h, true, nil
}
