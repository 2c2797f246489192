package hyperv

import "github.com/openhcl/paravisor-core/internal/tmk"

var (
	_ tmk.VtlPlatform                     = (*Context)(nil)
	_ tmk.MsrPlatform                     = (*Context)(nil)
	_ tmk.VirtualProcessorPlatform[Context] = (*Context)(nil)
)
