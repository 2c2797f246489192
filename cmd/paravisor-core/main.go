// Command paravisor-core replays seed scenario manifests against the
// paravisor-core component libraries, for use as a quick smoke check
// independent of the full test suite.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"unsafe"

	"github.com/openhcl/paravisor-core/internal/bootshim"
	"github.com/openhcl/paravisor-core/internal/fastmemcpy"
	"github.com/openhcl/paravisor-core/internal/pchan"
	"github.com/openhcl/paravisor-core/internal/pstate"
	"github.com/openhcl/paravisor-core/internal/tmk/scenario"
)

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	manifestPath := fs.String("manifest", "", "Path to a scenario manifest YAML file")
	suitePath := fs.String("suite", "", "Path to a scenario suite YAML file (a list of manifests)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	if *manifestPath == "" && *suitePath == "" {
		fs.Usage()
		os.Exit(1)
	}

	var manifests []scenario.Manifest
	if *manifestPath != "" {
		m, err := scenario.LoadFile(*manifestPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load manifest: %v\n", err)
			os.Exit(1)
		}
		manifests = append(manifests, *m)
	}
	if *suitePath != "" {
		ms, err := scenario.LoadAllFile(*suitePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load suite: %v\n", err)
			os.Exit(1)
		}
		manifests = append(manifests, ms...)
	}

	failed := 0
	for _, m := range manifests {
		if err := runScenario(m); err != nil {
			fmt.Fprintf(os.Stderr, "FAIL %s (%s): %v\n", m.Name, m.Component, err)
			failed++
			continue
		}
		fmt.Printf("PASS %s (%s)\n", m.Name, m.Component)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func runScenario(m scenario.Manifest) error {
	switch m.Component {
	case "bump_alloc":
		return runBumpAlloc(m.BumpAlloc)
	case "dma_hint":
		return runDMAHint(m.DMAHint)
	case "channel":
		return runChannel(m.Channel)
	case "memmove":
		return runMemmove(m.Memmove)
	case "persisted":
		return runPersisted(m.Persisted)
	case "aes_vector":
		return runAESVector(m.AESVector)
	default:
		return fmt.Errorf("unknown component %q", m.Component)
	}
}

func runBumpAlloc(p *scenario.BumpAllocParams) error {
	if p == nil {
		return fmt.Errorf("manifest missing bump_alloc parameters")
	}
	a := bootshim.NewBumpAllocator()
	a.Init(make([]byte, p.ReservationBytes))

	var runErr error
	a.WithGlobalAlloc(func() {
		var lastAddr uintptr
		for i, req := range p.Allocations {
			got := a.Alloc(req.Size, req.Size)
			if got == nil {
				runErr = fmt.Errorf("allocation %d (size %d) returned nil", i, req.Size)
				return
			}
			addr := addrOf(got)
			if i > 0 && addr <= lastAddr {
				runErr = fmt.Errorf("allocation %d address %#x not increasing from %#x", i, addr, lastAddr)
				return
			}
			lastAddr = addr
		}
		for i := 0; i < p.ThenPushBytes; i++ {
			if a.Alloc(1, 1) == nil {
				runErr = fmt.Errorf("push byte %d returned nil", i)
				return
			}
		}
		if p.ThenResizeBytes > 0 && a.Alloc(p.ThenResizeBytes, 8) == nil {
			runErr = fmt.Errorf("resize to %d bytes returned nil", p.ThenResizeBytes)
			return
		}
	})
	return runErr
}

func runDMAHint(p *scenario.DMAHintParams) error {
	if p == nil {
		return fmt.Errorf("manifest missing dma_hint parameters")
	}
	var table bootshim.LookupTable
	switch p.Table {
	case "release", "":
		table = bootshim.LookupTableRelease
	case "debug":
		table = bootshim.LookupTableDebug
	default:
		return fmt.Errorf("unknown lookup table %q", p.Table)
	}
	got := bootshim.VTL2CalculateDMAHint(table, int(p.VpCount), p.MemSizeBytes)
	if got != p.ExpectedPages {
		return fmt.Errorf("VTL2CalculateDMAHint = %d pages, want %d", got, p.ExpectedPages)
	}
	return nil
}

func runChannel(p *scenario.ChannelParams) error {
	if p == nil {
		return fmt.Errorf("manifest missing channel parameters")
	}
	sender, receiver := pchan.New[int]()

	prioritySet := make(map[int]bool, len(p.Priority))
	for _, v := range p.Priority {
		prioritySet[v] = true
	}
	for _, v := range p.Sends {
		var err error
		if prioritySet[v] {
			err = sender.SendPriority(v)
		} else {
			err = sender.Send(v)
		}
		if err != nil {
			return fmt.Errorf("send(%d): %w", v, err)
		}
	}

	for i, want := range p.ExpectedRecv {
		got, err := receiver.TryRecv()
		if err != nil {
			return fmt.Errorf("recv %d: %w", i, err)
		}
		if got != want {
			return fmt.Errorf("recv %d = %d, want %d", i, got, want)
		}
	}
	return nil
}

func runMemmove(p *scenario.MemmoveParams) error {
	if p == nil {
		return fmt.Errorf("manifest missing memmove parameters")
	}
	for _, length := range p.Lengths {
		for _, offset := range p.Offsets {
			size := p.Base + length + abs(offset) + 1
			data := make([]byte, size)
			for i := range data {
				data[i] = byte(i)
			}
			want := append([]byte(nil), data...)
			copy(want[p.Base+offset:], want[p.Base:p.Base+length])

			got := append([]byte(nil), data...)
			fastmemcpy.Copy(got[p.Base+offset:p.Base+offset+length], got[p.Base:p.Base+length])

			for i := 0; i < length; i++ {
				if got[p.Base+offset+i] != want[p.Base+offset+i] {
					return fmt.Errorf("len=%d offset=%d: byte %d = %d, want %d",
						length, offset, i, got[p.Base+offset+i], want[p.Base+offset+i])
				}
			}
		}
	}
	return nil
}

func runPersisted(p *scenario.PersistedParams) error {
	if p == nil {
		return fmt.Errorf("manifest missing persisted parameters")
	}
	payload := make([]byte, p.PayloadLen)
	for i := range payload {
		payload[i] = byte(i)
	}

	h := pstate.Header{
		Magic:              pstate.Magic(),
		ProtobufBase:       pstate.HeaderSize,
		ProtobufRegionLen:  uint64(len(payload)),
		ProtobufPayloadLen: uint64(len(payload)),
	}
	if p.CorruptMagic {
		h.Magic ^= 0xff
	}
	region := append(h.Encode(), payload...)

	got, ok, err := pstate.DecodeHeader(region[:pstate.HeaderSize])
	if err != nil {
		return fmt.Errorf("DecodeHeader: %w", err)
	}
	if p.CorruptMagic {
		if ok {
			return fmt.Errorf("corrupted magic was accepted as valid")
		}
		return nil
	}
	if !ok {
		return fmt.Errorf("DecodeHeader rejected a valid header")
	}
	readBack := region[got.ProtobufBase : got.ProtobufBase+got.ProtobufPayloadLen]
	if len(readBack) != len(payload) {
		return fmt.Errorf("read back %d bytes, want %d", len(readBack), len(payload))
	}
	for i := range payload {
		if readBack[i] != payload[i] {
			return fmt.Errorf("payload byte %d = %d, want %d", i, readBack[i], payload[i])
		}
	}
	return nil
}

func runAESVector(p *scenario.AESVectorParams) error {
	if p == nil {
		return fmt.Errorf("manifest missing aes_vector parameters")
	}
	key, err := hex.DecodeString(p.KeyHex)
	if err != nil || len(key) != 32 {
		return fmt.Errorf("key_hex must decode to 32 bytes: %v", err)
	}
	plaintext, err := hex.DecodeString(p.PlaintextHex)
	if err != nil || len(plaintext) != 16 {
		return fmt.Errorf("plaintext_hex must decode to 16 bytes: %v", err)
	}
	want, err := hex.DecodeString(p.CiphertextHex)
	if err != nil || len(want) != 16 {
		return fmt.Errorf("ciphertext_hex must decode to 16 bytes: %v", err)
	}

	var keyArr [32]byte
	var ptArr [16]byte
	copy(keyArr[:], key)
	copy(ptArr[:], plaintext)

	got, err := pstate.EncryptBlock(keyArr, ptArr)
	if err != nil {
		return fmt.Errorf("EncryptBlock: %w", err)
	}
	if hex.EncodeToString(got[:]) != hex.EncodeToString(want) {
		return fmt.Errorf("EncryptBlock = %x, want %x", got, want)
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
