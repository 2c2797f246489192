package bootshim

// LookupTable selects which DMA-hint heuristics table to consult.
type LookupTable int

const (
	LookupTableRelease LookupTable = iota
	LookupTableDebug
)

type dmaHintRow struct {
	vpCount      uint16
	vtl2MemoryMB uint16
	dmaHintMB    uint16
}

// lookupTableRelease retrofits dedicated DMA memory for known release
// configurations, sorted by VP count then assigned memory.
var lookupTableRelease = [39]dmaHintRow{
	{2, 96, 2},
	{2, 98, 4},
	{2, 100, 4},
	{2, 104, 4},
	{4, 108, 2},
	{4, 110, 6},
	{4, 112, 6},
	{4, 118, 8},
	{4, 130, 12},
	{8, 140, 4},
	{8, 148, 10},
	{8, 170, 20},
	{8, 176, 20},
	{16, 70, 2},
	{16, 234, 12},
	{16, 256, 20},
	{16, 268, 38},
	{16, 282, 54},
	{24, 420, 66},
	{32, 404, 22},
	{32, 516, 36},
	{32, 538, 74},
	{48, 558, 32},
	{48, 718, 52},
	{48, 730, 52},
	{48, 746, 78},
	{64, 712, 42},
	{64, 924, 68},
	{64, 938, 68},
	{96, 1030, 64},
	{96, 1042, 114},
	{96, 1058, 114},
	{96, 1340, 102},
	{96, 1358, 104},
	{96, 1382, 120},
	{112, 1566, 288},
	{128, 1342, 84},
	{128, 1360, 84},
	{896, 12912, 516},
}

// lookupTableDebug is the dev/test-only variant, sized for ~3 NVMe devices
// worth of DMA memory per VP.
var lookupTableDebug = [6]dmaHintRow{
	{4, 496, 4},
	{16, 512, 16},
	{32, 1024, 32},
	{32, 1536, 128},
	{64, 1024, 64},
	{128, 1024, 128},
}

const (
	oneMB = uint64(1024 * 1024)
	// maxDMAHintMemSize is the largest memory size (1 TiB) DMA-hint
	// calculation accepts; anything at or above it yields 0.
	maxDMAHintMemSize = uint64(0xFFFFFFFF00000)
	pageSize4K        = uint64(4096)
	// pagesPer2MB is the number of 4K pages in 2 MiB.
	pagesPer2MB = 2 * oneMB / pageSize4K
	// ratio scales fixed-point ratios to 1:1000 to avoid floating point.
	ratio = uint32(1000)
)

func roundUpTo2MB(pages4K uint64) uint64 {
	return (pages4K + (pagesPer2MB - 1)) &^ (pagesPer2MB - 1)
}

// VTL2CalculateDMAHint returns the recommended DMA-hint pool size, in 4 KiB
// pages, for the given lookup table, VP count, and VTL2 memory size in
// bytes. It returns 0 if memSize is zero or exceeds the 1 TiB sanity bound.
func VTL2CalculateDMAHint(table LookupTable, vpCount int, memSize uint64) uint64 {
	var dmaHint4K uint64

	if memSize == 0 || memSize >= maxDMAHintMemSize {
		return 0
	}

	memSizeMB := uint32(memSize / oneMB)

	var minVTL2MemoryMB uint16 = 0xFFFF
	var maxVTL2MemoryMB uint16

	minRatio1000th := 100 * ratio
	maxRatio1000th := ratio

	var minVPCount uint16 = 1
	maxVPCount := uint16(vpCount)

	var rows []dmaHintRow
	switch table {
	case LookupTableRelease:
		rows = lookupTableRelease[:]
	case LookupTableDebug:
		rows = lookupTableDebug[:]
	}

	exactMatch := false
	for _, row := range rows {
		switch {
		case row.vpCount < uint16(vpCount):
			if row.vpCount > minVPCount {
				minVPCount = row.vpCount
			}
		case row.vpCount == uint16(vpCount):
			if row.vtl2MemoryMB == uint16(memSizeMB) {
				dmaHint4K = uint64(row.dmaHintMB) * oneMB / pageSize4K
				maxVTL2MemoryMB = row.vtl2MemoryMB
				exactMatch = true
			} else {
				if row.vtl2MemoryMB < minVTL2MemoryMB {
					minVTL2MemoryMB = row.vtl2MemoryMB
				}
				if row.vtl2MemoryMB > maxVTL2MemoryMB {
					maxVTL2MemoryMB = row.vtl2MemoryMB
				}
				r := uint32(row.vtl2MemoryMB) * ratio / uint32(row.dmaHintMB)
				if r < minRatio1000th {
					minRatio1000th = r
				}
				if r > maxRatio1000th {
					maxRatio1000th = r
				}
			}
		default: // row.vpCount > vpCount
			if row.vpCount < maxVPCount {
				maxVPCount = row.vpCount
			}
		}
		if exactMatch {
			break
		}
	}

	if maxVTL2MemoryMB == 0 {
		for _, row := range rows {
			if row.vpCount != minVPCount && row.vpCount != maxVPCount {
				continue
			}
			if row.vtl2MemoryMB < minVTL2MemoryMB {
				minVTL2MemoryMB = row.vtl2MemoryMB
			}
			if row.vtl2MemoryMB > maxVTL2MemoryMB {
				maxVTL2MemoryMB = row.vtl2MemoryMB
			}
			r := uint32(row.vtl2MemoryMB) * ratio / uint32(row.dmaHintMB)
			if r < minRatio1000th {
				minRatio1000th = r
			}
			if r > maxRatio1000th {
				maxRatio1000th = r
			}
		}
	}

	if dmaHint4K == 0 {
		dmaHint4K = (uint64(memSizeMB) * uint64(ratio) * (oneMB / pageSize4K)) /
			((uint64(minRatio1000th) + uint64(maxRatio1000th)) / 2)
		dmaHint4K = roundUpTo2MB(dmaHint4K)

		bootshimLog.Writef("extrapolated VTL2 DMA hint: %d pages (%d MiB) for %d VPs and %d MiB VTL2 memory",
			dmaHint4K, dmaHint4K*pageSize4K/oneMB, vpCount, memSizeMB)
	} else {
		bootshimLog.Writef("found exact VTL2 DMA hint: %d pages (%d MiB) for %d VPs and %d MiB VTL2 memory",
			dmaHint4K, dmaHint4K*pageSize4K/oneMB, vpCount, memSizeMB)
	}

	return dmaHint4K
}

// PoolConfigKind discriminates the command-line VTL2 GPA pool configuration.
type PoolConfigKind int

const (
	PoolConfigOff PoolConfigKind = iota
	PoolConfigPages
	PoolConfigHeuristics
)

// PoolConfig is the command-line-supplied VTL2 GPA pool configuration: an
// explicit page count, a heuristics table selector, or disabled.
type PoolConfig struct {
	Kind  PoolConfigKind
	Pages uint64
	Table LookupTable
}

// PickPrivatePoolSize resolves the VTL2 GPA pool size in 4 KiB pages,
// honoring the priority order: explicit Off disables the pool; command-line
// Pages(N) always wins; a nonzero device-tree-supplied page count overrides
// heuristics; otherwise the heuristics table is consulted.
//
// dtPages is nil if the device tree did not supply a page count.
func PickPrivatePoolSize(cmdline PoolConfig, dtPages *uint64, vpCount int, memSize uint64) *uint64 {
	switch cmdline.Kind {
	case PoolConfigOff:
		bootshimLog.Writef("vtl2 gpa pool disabled via command line")
		return nil
	case PoolConfigPages:
		bootshimLog.Writef("vtl2 gpa pool enabled via command line with pages: %d", cmdline.Pages)
		pages := cmdline.Pages
		return &pages
	case PoolConfigHeuristics:
		if dtPages == nil || *dtPages == 0 {
			bootshimLog.Writef("vtl2 gpa pool coming from heuristics table: %v", cmdline.Table)
			pages := VTL2CalculateDMAHint(cmdline.Table, vpCount, memSize)
			return &pages
		}
		bootshimLog.Writef("vtl2 gpa pool enabled via device tree with pages: %d", *dtPages)
		pages := *dtPages
		return &pages
	}
	return nil
}
