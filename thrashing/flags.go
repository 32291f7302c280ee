package thrashing

import "github.com/vkngwrapper/core/v2/common"

// SpaceCreateFlags indicate specific space behaviors to activate or deactivate
type SpaceCreateFlags int32

var spaceCreateFlagsMapping = common.NewFlagStringMapping[SpaceCreateFlags]()

func (f SpaceCreateFlags) Register(str string) {
	spaceCreateFlagsMapping.Register(f, str)
}
func (f SpaceCreateFlags) String() string {
	return spaceCreateFlagsMapping.FlagsToString(f)
}

const (
	// SpaceCreateExternallySynchronized ensures that this space and all blocks created from it will
	// not be synchronized internally. The consumer must guarantee they are used from only one thread at
	// a time or are synchronized by some other mechanism. Pinned pages are never unpinned on a timer:
	// the consumer must call Space.RunUnpinSweep to expire them.
	SpaceCreateExternallySynchronized SpaceCreateFlags = 1 << iota
)

func init() {
	SpaceCreateExternallySynchronized.Register("SpaceCreateExternallySynchronized")
}

// HintType is the action the fault handler should take for a thrashing page
type HintType int32

const (
	// HintNone means the fault should be serviced normally
	HintNone HintType = iota
	// HintThrottle means the faulting processor should not retry the fault before Hint.Throttle.Deadline
	HintThrottle
	// HintPin means the page should be made resident on Hint.Pin.Residency and the processors in
	// Hint.Pin.Processors mapped to it remotely
	HintPin
)

var hintTypeMapping = map[HintType]string{
	HintNone:     "None",
	HintThrottle: "Throttle",
	HintPin:      "Pin",
}

func (t HintType) String() string {
	return hintTypeMapping[t]
}

// MigrationCause tags the reason the residency engine moved a page
type MigrationCause int32

const (
	CauseReplayableFault MigrationCause = iota
	CauseNonReplayableFault
	CauseAccessCounter
	CausePrefetch
	CauseEviction
	CauseAPIToolsMigrate
	CauseAPIMigrate
	CauseAPISetRangeGroup
	CauseAPIHint
)

var migrationCauseMapping = map[MigrationCause]string{
	CauseReplayableFault:    "CauseReplayableFault",
	CauseNonReplayableFault: "CauseNonReplayableFault",
	CauseAccessCounter:      "CauseAccessCounter",
	CausePrefetch:           "CausePrefetch",
	CauseEviction:           "CauseEviction",
	CauseAPIToolsMigrate:    "CauseAPIToolsMigrate",
	CauseAPIMigrate:         "CauseAPIMigrate",
	CauseAPISetRangeGroup:   "CauseAPISetRangeGroup",
	CauseAPIHint:            "CauseAPIHint",
}

func (c MigrationCause) String() string {
	return migrationCauseMapping[c]
}

// organic returns true for causes that come from the processors' own access patterns rather than
// from user commands or advice
func (c MigrationCause) organic() bool {
	return c == CauseReplayableFault || c == CauseAccessCounter || c == CausePrefetch
}

// TransferMode is the way a migration treated the source copy of the data
type TransferMode int32

const (
	// TransferModeMove invalidates the source copy
	TransferModeMove TransferMode = iota
	// TransferModeCopy leaves the source copy valid
	TransferModeCopy
)

var transferModeMapping = map[TransferMode]string{
	TransferModeMove: "TransferModeMove",
	TransferModeCopy: "TransferModeCopy",
}

func (m TransferMode) String() string {
	return transferModeMapping[m]
}

// Policy is the diagnostic thrashing policy of a space
type Policy int32

const (
	PolicyDisable Policy = iota
	PolicyEnable
	policyMax
)

var policyMapping = map[Policy]string{
	PolicyDisable: "PolicyDisable",
	PolicyEnable:  "PolicyEnable",
}

func (p Policy) String() string {
	return policyMapping[p]
}

// AllocationKind identifies the tracking structure the engine is about to allocate
type AllocationKind int32

const (
	AllocationBlockRecord AllocationKind = iota
	AllocationPageRecords
	AllocationPinDescriptor
)

var allocationKindMapping = map[AllocationKind]string{
	AllocationBlockRecord:   "AllocationBlockRecord",
	AllocationPageRecords:   "AllocationPageRecords",
	AllocationPinDescriptor: "AllocationPinDescriptor",
}

func (k AllocationKind) String() string {
	return allocationKindMapping[k]
}
