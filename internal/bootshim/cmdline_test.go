package bootshim

import "testing"

func TestParsePoolConfig(t *testing.T) {
	tests := []struct {
		arg  string
		want PoolConfig
	}{
		{"debug", PoolConfig{Kind: PoolConfigHeuristics, Table: LookupTableDebug}},
		{"release", PoolConfig{Kind: PoolConfigHeuristics, Table: LookupTableRelease}},
		{"off", PoolConfig{Kind: PoolConfigOff}},
		{"2048", PoolConfig{Kind: PoolConfigPages, Pages: 2048}},
		{"0", PoolConfig{Kind: PoolConfigOff}},
		{"not-a-number", PoolConfig{Kind: PoolConfigOff}},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got := parsePoolConfig(tt.arg)
			if got != tt.want {
				t.Fatalf("parsePoolConfig(%q) = %+v, want %+v", tt.arg, got, tt.want)
			}
		})
	}
}

func TestBootCommandLineOptionsDefaults(t *testing.T) {
	opts := NewBootCommandLineOptions()
	if opts.EnableVTL2GpaPool.Kind != PoolConfigHeuristics || opts.EnableVTL2GpaPool.Table != LookupTableRelease {
		t.Fatalf("default pool config = %+v, want release heuristics", opts.EnableVTL2GpaPool)
	}
	if !opts.Sidecar {
		t.Fatalf("default Sidecar = false, want true")
	}
	if opts.ConfidentialDebug || opts.SidecarLogging || opts.DisableNVMeKeepAlive {
		t.Fatalf("unexpected non-default option in %+v", opts)
	}
}

func TestBootCommandLineOptionsParseIndividualTokens(t *testing.T) {
	var opts BootCommandLineOptions
	opts.Parse("OPENHCL_CONFIDENTIAL_DEBUG=1 OPENHCL_DISABLE_NVME_KEEP_ALIVE=1")
	if !opts.ConfidentialDebug {
		t.Fatalf("ConfidentialDebug not set")
	}
	if !opts.DisableNVMeKeepAlive {
		t.Fatalf("DisableNVMeKeepAlive not set")
	}
}

func TestBootCommandLineOptionsParseSidecarCommaList(t *testing.T) {
	opts := NewBootCommandLineOptions()
	opts.Parse("OPENHCL_SIDECAR=off,log")
	if opts.Sidecar {
		t.Fatalf("Sidecar = true, want false")
	}
	if !opts.SidecarLogging {
		t.Fatalf("SidecarLogging not set")
	}
}

func TestBootCommandLineOptionsEnablePoolOverridesIGVMConfigRegardlessOfOrder(t *testing.T) {
	var opts BootCommandLineOptions
	opts.Parse("OPENHCL_ENABLE_VTL2_GPA_POOL=4096 OPENHCL_IGVM_VTL2_GPA_POOL_CONFIG=debug")
	want := PoolConfig{Kind: PoolConfigPages, Pages: 4096}
	if opts.EnableVTL2GpaPool != want {
		t.Fatalf("EnableVTL2GpaPool = %+v, want %+v (override should win regardless of token order)", opts.EnableVTL2GpaPool, want)
	}

	var opts2 BootCommandLineOptions
	opts2.Parse("OPENHCL_IGVM_VTL2_GPA_POOL_CONFIG=debug OPENHCL_ENABLE_VTL2_GPA_POOL=4096")
	if opts2.EnableVTL2GpaPool != want {
		t.Fatalf("EnableVTL2GpaPool = %+v, want %+v (override should win regardless of token order)", opts2.EnableVTL2GpaPool, want)
	}
}

func TestBootCommandLineOptionsIGVMConfigAppliesWithoutOverride(t *testing.T) {
	var opts BootCommandLineOptions
	opts.Parse("OPENHCL_IGVM_VTL2_GPA_POOL_CONFIG=off")
	if opts.EnableVTL2GpaPool.Kind != PoolConfigOff {
		t.Fatalf("EnableVTL2GpaPool = %+v, want Off", opts.EnableVTL2GpaPool)
	}
}

func TestBootCommandLineOptionsIgnoresUnknownTokens(t *testing.T) {
	opts := NewBootCommandLineOptions()
	before := opts
	opts.Parse("SOME_UNRELATED_TOKEN=1 ANOTHER=yes")
	if opts != before {
		t.Fatalf("unrelated tokens modified options: got %+v, want %+v", opts, before)
	}
}

func TestValueAfterEquals(t *testing.T) {
	if v, ok := valueAfterEquals("FOO=bar"); !ok || v != "bar" {
		t.Fatalf("valueAfterEquals(FOO=bar) = (%q, %v), want (bar, true)", v, ok)
	}
	if _, ok := valueAfterEquals("FOOBAR"); ok {
		t.Fatalf("valueAfterEquals(FOOBAR) reported ok, want false")
	}
}
