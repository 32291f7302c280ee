package thrashing

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/vkngwrapper/uvm/internal/utils"
	"github.com/vkngwrapper/uvm/memutils"
	"github.com/vkngwrapper/uvm/processor"
)

var (
	maxThrashingEvents = memutils.MaxValue[uint8](thrashingEventsBits)
	maxThrottleCount   = memutils.MaxValue[uint8](throttleCountBits)
)

// pageThrashing is the tracking state of a single page
type pageThrashing struct {
	lastEventTime     uint64
	throttleWindowEnd uint64

	hasMigrationEvents  bool
	hasRevocationEvents bool
	pinned              bool

	thrashingEvents uint8
	throttleCount   uint8

	processors          processor.Mask
	throttledProcessors processor.Mask

	pinnedResidency processor.ID
	doNotThrottle   processor.ID
}

func (p *pageThrashing) setLastEventTime(ts uint64) {
	p.lastEventTime = truncateTimestamp(ts)
}

func (p *pageThrashing) setThrottleWindowEnd(ts uint64) {
	p.throttleWindowEnd = truncateTimestamp(ts)
}

// blockThrashing is the tracking state of a Block. The per-page records are only allocated once two
// processors touch the block within a lapse.
type blockThrashing struct {
	pages []pageThrashing

	thrashingCount uint16
	resetCount     uint8

	lastProcessor     processor.ID
	lastEventTime     uint64
	lastThrashingTime uint64

	throttleEvents uint32

	thrashingPages PageMask
	pinnedPages    PageMask
	pinnedCount    uint32

	pinnedListHead *pinnedPage
	pinnedListTail *pinnedPage
	pinnedListLen  int
}

func newPageRecords(count int) []pageThrashing {
	pages := make([]pageThrashing, count)
	for i := range pages {
		pages[i].pinnedResidency = processor.Invalid
		pages[i].doNotThrottle = processor.Invalid
	}
	return pages
}

// Block is a contiguous, page-aligned range of virtual addresses owned by a Space. The residency
// engine holds the block lock while calling into the engine for the block.
type Block struct {
	mutex utils.OptionalMutex

	space     *Space
	start     uint64
	pageCount int

	info *blockThrashing
}

func (b *Block) Lock() {
	b.mutex.Lock()
}

func (b *Block) Unlock() {
	b.mutex.Unlock()
}

func (b *Block) Space() *Space {
	return b.space
}

func (b *Block) Start() uint64 {
	return b.start
}

// End returns the last address of the block (inclusive)
func (b *Block) End() uint64 {
	return b.start + b.Size() - 1
}

func (b *Block) Size() uint64 {
	return uint64(b.pageCount) * b.space.pageSize
}

func (b *Block) PageCount() int {
	return b.pageCount
}

// Region returns the region covering every page of the block
func (b *Block) Region() Region {
	return Region{First: 0, Outer: PageIndex(b.pageCount)}
}

// PageIndex returns the index of the page containing address
func (b *Block) PageIndex(address uint64) (PageIndex, error) {
	if address < b.start || address > b.End() {
		return 0, errors.Wrapf(ErrInvalidArgument, "address %#x is outside block [%#x, %#x]", address, b.start, b.End())
	}
	return PageIndex((address - b.start) / b.space.pageSize), nil
}

// PageAddress returns the address of the first byte of the page
func (b *Block) PageAddress(page PageIndex) uint64 {
	return b.start + uint64(page)*b.space.pageSize
}

// RegionFromRange returns the region of pages touched by [address, address+length)
func (b *Block) RegionFromRange(address uint64, length uint64) (Region, error) {
	if length == 0 {
		return Region{}, errors.Wrapf(ErrInvalidArgument, "empty range at %#x", address)
	}

	if address > math.MaxUint64-(length-1) {
		return Region{}, errors.Wrapf(ErrInvalidArgument, "range of %d bytes at %#x wraps around the address space", length, address)
	}

	first, err := b.PageIndex(address)
	if err != nil {
		return Region{}, err
	}

	last, err := b.PageIndex(address + length - 1)
	if err != nil {
		return Region{}, err
	}

	return Region{First: first, Outer: last + 1}, nil
}

// Validate checks the invariants of the tracking state of the block. The block lock must be held.
func (b *Block) Validate() error {
	info := b.info
	if info == nil {
		return nil
	}

	params := b.space.params()

	var result *multierror.Error

	if !info.pinnedPages.Subset(info.thrashingPages) {
		result = multierror.Append(result, errors.Newf("pinned pages %s are not a subset of thrashing pages %s", info.pinnedPages, info.thrashingPages))
	}

	if int(info.thrashingCount) != info.thrashingPages.Count() {
		result = multierror.Append(result, errors.Newf("the listed number of thrashing pages (%d) does not match the thrashing page mask (%d)", info.thrashingCount, info.thrashingPages.Count()))
	}

	if int(info.pinnedCount) != info.pinnedPages.Count() {
		result = multierror.Append(result, errors.Newf("the listed number of pinned pages (%d) does not match the pinned page mask (%d)", info.pinnedCount, info.pinnedPages.Count()))
	}

	if info.resetCount > params.MaxResets {
		result = multierror.Append(result, errors.Newf("block was reset %d times, more than the maximum of %d", info.resetCount, params.MaxResets))
	}

	actualListLen := 0
	for pin := info.pinnedListHead; pin != nil; pin = pin.blockNext {
		actualListLen++
		if !info.pinnedPages.Test(pin.pageIndex) {
			result = multierror.Append(result, errors.Newf("page %d has a pin descriptor but is not pinned", pin.pageIndex))
		}
	}
	if actualListLen != info.pinnedListLen {
		result = multierror.Append(result, errors.Newf("the listed number of pin descriptors (%d) does not match the actual number of descriptors (%d)", info.pinnedListLen, actualListLen))
	}

	if info.pages == nil {
		if !info.thrashingPages.Empty() || !info.pinnedPages.Empty() {
			result = multierror.Append(result, errors.New("block has thrashing or pinned pages but no page records"))
		}
		return result.ErrorOrNil()
	}

	for i := range info.pages {
		if err := info.checkPage(PageIndex(i), params); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func (info *blockThrashing) checkPage(index PageIndex, params *Params) error {
	page := &info.pages[index]

	var result *multierror.Error

	if !page.throttledProcessors.Subset(page.processors) {
		result = multierror.Append(result, errors.Newf("page %d: throttled processors %s are not a subset of processors %s", index, page.throttledProcessors, page.processors))
	}

	if info.thrashingPages.Test(index) && page.thrashingEvents < params.Threshold {
		result = multierror.Append(result, errors.Newf("page %d: marked thrashing with only %d events", index, page.thrashingEvents))
	}

	if page.pinned {
		if !info.pinnedPages.Test(index) {
			result = multierror.Append(result, errors.Newf("page %d: pinned but missing from the pinned page mask", index))
		}
		if !page.pinnedResidency.IsValid() {
			result = multierror.Append(result, errors.Newf("page %d: pinned without a residency", index))
		}
		if page.throttleCount != 0 {
			result = multierror.Append(result, errors.Newf("page %d: pinned with a throttle count of %d", index, page.throttleCount))
		}
	} else {
		if info.pinnedPages.Test(index) {
			result = multierror.Append(result, errors.Newf("page %d: not pinned but present in the pinned page mask", index))
		}
		if page.pinnedResidency != processor.Invalid {
			result = multierror.Append(result, errors.Newf("page %d: not pinned but has residency %s", index, page.pinnedResidency))
		}
		if !page.throttledProcessors.Empty() {
			if page.throttleCount == 0 {
				result = multierror.Append(result, errors.Newf("page %d: throttled processors %s without a throttle count", index, page.throttledProcessors))
			}
			if !info.thrashingPages.Test(index) {
				result = multierror.Append(result, errors.Newf("page %d: throttled processors %s but not thrashing", index, page.throttledProcessors))
			}
		}
	}

	return result.ErrorOrNil()
}

type pageValidator struct {
	info   *blockThrashing
	index  PageIndex
	params *Params
}

func (v pageValidator) Validate() error {
	return v.info.checkPage(v.index, v.params)
}

// PageState is a snapshot of the tracking state of a page
type PageState struct {
	LastEventTime       uint64
	ThrottleWindowEnd   uint64
	HasMigrationEvents  bool
	HasRevocationEvents bool
	Pinned              bool
	PinnedResidency     processor.ID
	ThrashingEvents     uint8
	ThrottleCount       uint8
	Processors          processor.Mask
	ThrottledProcessors processor.Mask
	DoNotThrottle       processor.ID
}

// BlockState is a snapshot of the tracking state of a block
type BlockState struct {
	PageRecords       bool
	ThrashingPages    PageMask
	PinnedPages       PageMask
	ThrashingCount    int
	PinnedCount       int
	ResetCount        int
	ThrottleEvents    uint32
	LastProcessor     processor.ID
	LastEventTime     uint64
	LastThrashingTime uint64
}

// ThrashingState returns a snapshot of the block tracking state. It returns false if the block
// has no tracking state. The block lock must be held.
func (b *Block) ThrashingState() (BlockState, bool) {
	info := b.info
	if info == nil {
		return BlockState{}, false
	}

	return BlockState{
		PageRecords:       info.pages != nil,
		ThrashingPages:    info.thrashingPages,
		PinnedPages:       info.pinnedPages,
		ThrashingCount:    int(info.thrashingCount),
		PinnedCount:       int(info.pinnedCount),
		ResetCount:        int(info.resetCount),
		ThrottleEvents:    info.throttleEvents,
		LastProcessor:     info.lastProcessor,
		LastEventTime:     info.lastEventTime,
		LastThrashingTime: info.lastThrashingTime,
	}, true
}

// PageState returns a snapshot of the tracking state of a page. It returns false if the block
// has no page records. The block lock must be held.
func (b *Block) PageState(page PageIndex) (PageState, bool) {
	info := b.info
	if info == nil || info.pages == nil || int(page) >= len(info.pages) {
		return PageState{}, false
	}

	p := &info.pages[page]
	return PageState{
		LastEventTime:       p.lastEventTime,
		ThrottleWindowEnd:   p.throttleWindowEnd,
		HasMigrationEvents:  p.hasMigrationEvents,
		HasRevocationEvents: p.hasRevocationEvents,
		Pinned:              p.pinned,
		PinnedResidency:     p.pinnedResidency,
		ThrashingEvents:     p.thrashingEvents,
		ThrottleCount:       p.throttleCount,
		Processors:          p.processors,
		ThrottledProcessors: p.throttledProcessors,
		DoNotThrottle:       p.doNotThrottle,
	}, true
}
