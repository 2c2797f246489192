package bootshim

import (
	"strconv"
	"strings"
)

const (
	tokenConfidentialDebug    = "OPENHCL_CONFIDENTIAL_DEBUG="
	tokenIGVMVTL2GpaPool      = "OPENHCL_IGVM_VTL2_GPA_POOL_CONFIG="
	tokenEnableVTL2GpaPool    = "OPENHCL_ENABLE_VTL2_GPA_POOL="
	tokenSidecar              = "OPENHCL_SIDECAR="
	tokenDisableNVMeKeepAlive = "OPENHCL_DISABLE_NVME_KEEP_ALIVE="
)

// parsePoolConfig maps a command-line token value to a PoolConfig, mirroring
// Vtl2GpaPoolConfig::from: "debug"/"release" select a heuristics table,
// "off" disables the pool, and anything else is parsed as an explicit page
// count, falling back to Off on a zero or unparsable value.
func parsePoolConfig(arg string) PoolConfig {
	switch arg {
	case "debug":
		return PoolConfig{Kind: PoolConfigHeuristics, Table: LookupTableDebug}
	case "release":
		return PoolConfig{Kind: PoolConfigHeuristics, Table: LookupTableRelease}
	case "off":
		return PoolConfig{Kind: PoolConfigOff}
	default:
		num, err := strconv.ParseUint(arg, 10, 64)
		if err != nil || num == 0 {
			return PoolConfig{Kind: PoolConfigOff}
		}
		return PoolConfig{Kind: PoolConfigPages, Pages: num}
	}
}

// BootCommandLineOptions holds the options recognized on the paravisor boot
// command line (spec.md "External interfaces - Boot command line").
type BootCommandLineOptions struct {
	ConfidentialDebug    bool
	EnableVTL2GpaPool    PoolConfig
	Sidecar              bool
	SidecarLogging       bool
	DisableNVMeKeepAlive bool
}

// NewBootCommandLineOptions returns the default options: release heuristics
// for the GPA pool, sidecar enabled, everything else off.
func NewBootCommandLineOptions() BootCommandLineOptions {
	return BootCommandLineOptions{
		EnableVTL2GpaPool: PoolConfig{Kind: PoolConfigHeuristics, Table: LookupTableRelease},
		Sidecar:           true,
	}
}

// Parse updates opts in place from a whitespace-separated command line.
// OPENHCL_ENABLE_VTL2_GPA_POOL takes precedence over
// OPENHCL_IGVM_VTL2_GPA_POOL_CONFIG regardless of token order, applied after
// the rest of the line has been scanned.
func (opts *BootCommandLineOptions) Parse(cmdline string) {
	var overridePool *PoolConfig

	for _, arg := range strings.Fields(cmdline) {
		switch {
		case strings.HasPrefix(arg, tokenConfidentialDebug):
			if v, ok := valueAfterEquals(arg); ok && v != "0" {
				opts.ConfidentialDebug = true
			}
		case strings.HasPrefix(arg, tokenIGVMVTL2GpaPool):
			if v, ok := valueAfterEquals(arg); ok {
				opts.EnableVTL2GpaPool = parsePoolConfig(v)
			} else {
				bootshimLog.Writef("WARNING: missing value for IGVM_VTL2_GPA_POOL_CONFIG argument")
			}
		case strings.HasPrefix(arg, tokenEnableVTL2GpaPool):
			if v, ok := valueAfterEquals(arg); ok {
				cfg := parsePoolConfig(v)
				overridePool = &cfg
			} else {
				bootshimLog.Writef("WARNING: missing value for ENABLE_VTL2_GPA_POOL argument")
			}
		case strings.HasPrefix(arg, tokenSidecar):
			if v, ok := valueAfterEquals(arg); ok {
				for _, item := range strings.Split(v, ",") {
					switch item {
					case "off":
						opts.Sidecar = false
					case "on":
						opts.Sidecar = true
					case "log":
						opts.SidecarLogging = true
					}
				}
			}
		case strings.HasPrefix(arg, tokenDisableNVMeKeepAlive):
			if v, ok := valueAfterEquals(arg); ok && v != "0" {
				opts.DisableNVMeKeepAlive = true
			}
		}
	}

	if overridePool != nil {
		opts.EnableVTL2GpaPool = *overridePool
		bootshimLog.Writef("INFO: overriding VTL2 GPA pool config to %+v from command line", *overridePool)
	}
}

func valueAfterEquals(arg string) (string, bool) {
	idx := strings.IndexByte(arg, '=')
	if idx < 0 {
		return "", false
	}
	return arg[idx+1:], true
}
