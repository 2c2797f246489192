// Package tmk defines the platform-abstraction surface the test
// microkernel runs against: a small set of capability interfaces
// (MSR access, VP/VTL management), the per-VP exec token used to
// schedule work onto another virtual processor, and the shared error
// vocabulary every backend maps its own errors into.
package tmk

import "github.com/openhcl/paravisor-core/internal/hvcall"

// Error is the result type every tmk operation reports failure with.
type Error int

const (
	AllocationFailed Error = iota + 1
	InvalidParameter
	EnableVtlFailed
	SetDefaultCtxFailed
	StartVpFailed
	QueueCommandFailed
	SetupVtlProtectionFailed
	SetupPartitionVtlFailed
	SetupInterruptHandlerFailed
	SetInterruptIdxFailed
	SetupSecureInterceptFailed
	ApplyVtlProtectionForMemoryFailed
	ReadMsrFailed
	WriteMsrFailed
	GetRegisterFailed
	InvalidHypercallCode
	InvalidHypercallInput
	InvalidAlignment
	AccessDenied
	InvalidPartitionState
	OperationDenied
	UnknownProperty
	PropertyValueOutOfRange
	InsufficientMemory
	PartitionTooDeep
	InvalidPartitionId
	InvalidVpIndex
	NotFound
	InvalidPortId
	InvalidConnectionId
	InsufficientBuffers
	NotAcknowledged
	InvalidVpState
	Acknowledged
	InvalidSaveRestoreState
	InvalidSynicState
	ObjectInUse
	InvalidProximityDomainInfo
	NoData
	Inactive
	NoResources
	FeatureUnavailable
	PartialPacket
	ProcessorFeatureNotSupported
	ProcessorCacheLineFlushSizeIncompatible
	InsufficientBuffer
	IncompatibleProcessor
	InsufficientDeviceDomains
	CpuidFeatureValidationError
	CpuidXsaveFeatureValidationError
	ProcessorStartupTimeout
	SmxEnabled
	InvalidLpIndex
	InvalidRegisterValue
	InvalidVtlState
	NxNotDetected
	InvalidDeviceId
	InvalidDeviceState
	PendingPageRequests
	PageRequestInvalid
	KeyAlreadyExists
	DeviceAlreadyInDomain
	InvalidCpuGroupId
	InvalidCpuGroupState
	OperationFailed
	NotAllowedWithNestedVirtActive
	InsufficientRootMemory
	EventBufferAlreadyFreed
	Timeout
	VtlAlreadyEnabled
	UnknownRegisterName
	NotImplemented
)

var errorStrings = map[Error]string{
	AllocationFailed:                         "allocation failed",
	InvalidParameter:                         "invalid parameter",
	EnableVtlFailed:                          "failed to enable VTL",
	SetDefaultCtxFailed:                      "failed to set default context",
	StartVpFailed:                            "failed to start VP",
	QueueCommandFailed:                       "failed to queue command",
	SetupVtlProtectionFailed:                 "failed to set up VTL protection",
	SetupPartitionVtlFailed:                  "failed to set up partition VTL",
	SetupInterruptHandlerFailed:              "failed to set up interrupt handler",
	SetInterruptIdxFailed:                    "failed to set interrupt index",
	SetupSecureInterceptFailed:               "failed to set up secure intercept",
	ApplyVtlProtectionForMemoryFailed:        "failed to apply VTL protection for memory",
	ReadMsrFailed:                            "failed to read MSR",
	WriteMsrFailed:                           "failed to write MSR",
	GetRegisterFailed:                        "failed to get register",
	InvalidHypercallCode:                     "invalid hypercall code",
	InvalidHypercallInput:                    "invalid hypercall input",
	InvalidAlignment:                         "invalid alignment",
	AccessDenied:                             "access denied",
	InvalidPartitionState:                    "invalid partition state",
	OperationDenied:                          "operation denied",
	UnknownProperty:                          "unknown property",
	PropertyValueOutOfRange:                  "property value out of range",
	InsufficientMemory:                       "insufficient memory",
	PartitionTooDeep:                         "partition too deep",
	InvalidPartitionId:                       "invalid partition id",
	InvalidVpIndex:                           "invalid VP index",
	NotFound:                                 "not found",
	InvalidPortId:                            "invalid port id",
	InvalidConnectionId:                      "invalid connection id",
	InsufficientBuffers:                      "insufficient buffers",
	NotAcknowledged:                          "not acknowledged",
	InvalidVpState:                           "invalid VP state",
	Acknowledged:                             "already acknowledged",
	InvalidSaveRestoreState:                  "invalid save/restore state",
	InvalidSynicState:                        "invalid synic state",
	ObjectInUse:                              "object in use",
	InvalidProximityDomainInfo:               "invalid proximity domain info",
	NoData:                                   "no data",
	Inactive:                                 "inactive",
	NoResources:                              "no resources",
	FeatureUnavailable:                       "feature unavailable",
	PartialPacket:                            "partial packet",
	ProcessorFeatureNotSupported:             "processor feature not supported",
	ProcessorCacheLineFlushSizeIncompatible:  "processor cache line flush size incompatible",
	InsufficientBuffer:                       "insufficient buffer",
	IncompatibleProcessor:                    "incompatible processor",
	InsufficientDeviceDomains:                "insufficient device domains",
	CpuidFeatureValidationError:              "cpuid feature validation error",
	CpuidXsaveFeatureValidationError:         "cpuid xsave feature validation error",
	ProcessorStartupTimeout:                  "processor startup timeout",
	SmxEnabled:                               "smx enabled",
	InvalidLpIndex:                           "invalid LP index",
	InvalidRegisterValue:                     "invalid register value",
	InvalidVtlState:                          "invalid VTL state",
	NxNotDetected:                            "nx not detected",
	InvalidDeviceId:                          "invalid device id",
	InvalidDeviceState:                       "invalid device state",
	PendingPageRequests:                      "pending page requests",
	PageRequestInvalid:                       "page request invalid",
	KeyAlreadyExists:                         "key already exists",
	DeviceAlreadyInDomain:                    "device already in domain",
	InvalidCpuGroupId:                        "invalid cpu group id",
	InvalidCpuGroupState:                     "invalid cpu group state",
	OperationFailed:                          "operation failed",
	NotAllowedWithNestedVirtActive:           "not allowed with nested virtualization active",
	InsufficientRootMemory:                   "insufficient root memory",
	EventBufferAlreadyFreed:                  "event buffer already freed",
	Timeout:                                  "timeout",
	VtlAlreadyEnabled:                        "vtl already enabled",
	UnknownRegisterName:                      "unknown register name",
	NotImplemented:                           "not implemented",
}

func (e Error) Error() string {
	if s, ok := errorStrings[e]; ok {
		return s
	}
	return "tmk: unknown error"
}

var hvErrorToTmkError = map[hvcall.HvError]Error{
	hvcall.HvErrorInvalidParameter:  InvalidParameter,
	hvcall.HvErrorAccessDenied:      AccessDenied,
	hvcall.HvErrorOperationDenied:   OperationDenied,
	hvcall.HvErrorVtlAlreadyEnabled: VtlAlreadyEnabled,
}

// FromHvError maps a hypercall failure into the tmk error vocabulary,
// falling back to OperationFailed (and logging via the caller-supplied
// log function) for any status this table doesn't name explicitly, or
// for an err that isn't an hvcall.HvError at all. err == nil returns
// Error(0), which is not a valid error code and should never be checked
// by callers that already verified err != nil.
func FromHvError(err error, warnf func(format string, args ...any)) Error {
	he, ok := err.(hvcall.HvError)
	if !ok {
		if warnf != nil {
			warnf("tmk: non-hypercall error %v, reporting OperationFailed", err)
		}
		return OperationFailed
	}
	if te, ok := hvErrorToTmkError[he]; ok {
		return te
	}
	if warnf != nil {
		warnf("tmk: unmapped hypercall error %v, reporting OperationFailed", he)
	}
	return OperationFailed
}
