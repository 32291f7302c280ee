package thrashing

//go:generate mockgen -source residency.go -destination ./mocks/residency.go -package mock_thrashing

import "github.com/vkngwrapper/uvm/processor"

// RangePolicy is the user policy applying to a page, owned by the range it belongs to
type RangePolicy struct {
	// PreferredLocation is the processor pages of the range should live on, or processor.Invalid
	PreferredLocation processor.ID
	// AccessedBy is the set of processors that should always keep a mapping to the range
	AccessedBy processor.Mask
	// LazilyPopulated marks ranges whose pages start out resident on the CPU without the residency
	// engine having recorded it yet
	LazilyPopulated bool
}

// Residency is the view of the residency engine that the thrashing engine consults. Every method
// is called with the block lock held.
type Residency interface {
	// Policy returns the policy of the range containing the page
	Policy(block *Block, page PageIndex) RangePolicy
	// ClosestResident returns the processor holding a copy of the page that is closest to
	// requester, or processor.Invalid if no copy is known
	ClosestResident(block *Block, page PageIndex, requester processor.ID) processor.ID
	// ResidentProcessors returns every processor holding a valid copy of the page
	ResidentProcessors(block *Block, page PageIndex) processor.Mask
	// ResidentPages returns the pages of the block resident on the given processor
	ResidentPages(block *Block, id processor.ID) PageMask
	// MappedProcessors returns every processor with a mapping anywhere in the block
	MappedProcessors(block *Block) processor.Mask
	// Unmap removes the mappings of the given processor for the pages within region
	Unmap(block *Block, id processor.ID, region Region, pages PageMask) error
}

// EventRecorder receives the observability events of the engine. Calls are made with the block
// lock held and must not call back into the Space.
type EventRecorder interface {
	// RecordThrashing is called when a page first crosses the thrashing threshold
	RecordThrashing(space *Space, address uint64, size uint64, processors processor.Mask)
	// RecordThrottlingStart is called when a GPU is first throttled on a page
	RecordThrottlingStart(space *Space, address uint64, id processor.ID)
	// RecordThrottlingEnd is called when a GPU stops being throttled on a page
	RecordThrottlingEnd(space *Space, address uint64, id processor.ID)
}

type nopRecorder struct{}

func (nopRecorder) RecordThrashing(*Space, uint64, uint64, processor.Mask) {}
func (nopRecorder) RecordThrottlingStart(*Space, uint64, processor.ID)     {}
func (nopRecorder) RecordThrottlingEnd(*Space, uint64, processor.ID)       {}
