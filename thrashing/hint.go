package thrashing

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/uvm/memutils"
	"github.com/vkngwrapper/uvm/processor"
	"golang.org/x/exp/slog"
)

// PinHint is the payload of a HintPin
type PinHint struct {
	// Residency is the processor the page must be made resident on
	Residency processor.ID
	// Processors is every processor thrashing on the page. Those that are not Residency should
	// be mapped to it remotely.
	Processors processor.Mask
}

// ThrottleHint is the payload of a HintThrottle
type ThrottleHint struct {
	// Deadline is the timestamp before which the faulting processor should not retry
	Deadline uint64
}

// Hint is the action recommended for a fault on a thrashing page
type Hint struct {
	Type     HintType
	Pin      PinHint
	Throttle ThrottleHint
}

// GetHint decides how the fault of requester on address should be serviced and updates the page
// tracking state to match the decision. The block lock must be held.
//
// Failing to allocate pin state is not an error: the hint is downgraded to HintThrottle instead.
// An error is only returned when the address is outside the block or the requester is not valid.
func (s *Space) GetHint(block *Block, address uint64, requester processor.ID) (Hint, error) {
	s.assertLocked(block)

	if !requester.IsValid() {
		return Hint{}, errors.Wrapf(ErrInvalidArgument, "requester %s is not a valid processor", requester)
	}

	pageIndex, err := block.PageIndex(address)
	if err != nil {
		return Hint{}, err
	}

	hint := Hint{Type: HintNone}

	params := s.params()
	if !params.Enabled {
		return hint, nil
	}

	// Without per-page records nothing can be thrashing yet
	info := block.info
	if info == nil || info.pages == nil {
		return hint, nil
	}

	now := s.clock.Now()

	if s.epochReset(block, info, params, now) {
		return hint, nil
	}

	page := &info.pages[pageIndex]
	if page.thrashingEvents < params.Threshold {
		return hint, nil
	}

	hint = s.decideHint(block, page, pageIndex, requester, params, now)

	downgraded := false
	if hint.Type == HintPin {
		err = s.pinPage(block, info, page, pageIndex, now, hint.Pin.Residency, requester)
		if err != nil {
			s.logger.Debug("Space::GetHint failed to pin, throttling instead",
				slog.Uint64("address", address),
				slog.String("processor", requester.String()),
				slog.Any("error", err))
			hint = Hint{Type: HintThrottle}
			downgraded = true
		} else {
			if hint.Pin.Residency == requester {
				s.module.incStats(requester, statsPinLocal)
			} else {
				s.module.incStats(requester, statsPinRemote)
			}
			hint.Pin.Processors = page.processors
		}
	}

	switch hint.Type {
	case HintThrottle:
		s.throttleProcessor(block, info, page, pageIndex, requester, downgraded)
		s.module.incStats(requester, statsThrottle)
		hint.Throttle.Deadline = page.throttleWindowEnd
	case HintNone:
		memutils.Assert(!page.throttledProcessors.Test(requester), "no hint for %s on page %d while it is throttled", requester, pageIndex)
		memutils.Assert(!page.pinned, "no hint for %s on pinned page %d", requester, pageIndex)
		memutils.Assert(!page.pinnedResidency.IsValid(), "no hint for %s on page %d with pinned residency %s", requester, pageIndex, page.pinnedResidency)
	}

	memutils.DebugValidate(pageValidator{info: info, index: pageIndex, params: params})

	s.logger.Debug("Space::GetHint",
		slog.Uint64("address", address),
		slog.String("processor", requester.String()),
		slog.String("hint", hint.Type.String()))

	return hint, nil
}

// epochReset wipes the page records of a block that has not been thrashing for an epoch. It
// returns false if the block does not qualify.
func (s *Space) epochReset(block *Block, info *blockThrashing, params *Params, now uint64) bool {
	if info.lastThrashingTime == 0 ||
		now-info.lastThrashingTime <= uint64(params.Epoch) ||
		info.pinnedCount != 0 ||
		info.resetCount >= params.MaxResets {
		return false
	}

	info.resetCount++

	// End every throttle so the recorder sees the matching end events
	info.thrashingPages.ForEach(func(index PageIndex) bool {
		s.resetThrottling(block, info, &info.pages[index], index)
		return true
	})

	memutils.Assert(info.pinnedPages.Empty(), "block %#x has pinned pages %s during an epoch reset", block.start, info.pinnedPages)

	info.pages = nil
	info.thrashingCount = 0
	info.thrashingPages.Zero()
	info.lastProcessor = processor.Invalid
	info.lastEventTime = 0
	info.lastThrashingTime = 0

	s.logger.Debug("Space::GetHint epoch reset",
		slog.Uint64("block", block.start),
		slog.Int("reset_count", int(info.resetCount)))

	return true
}

// decideHint runs the throttling bookkeeping of a thrashing page and picks the hint for the
// requester. It applies throttle ends but leaves pinning and throttling to the caller.
func (s *Space) decideHint(block *Block, page *pageThrashing, pageIndex PageIndex, requester processor.ID, params *Params, now uint64) Hint {
	info := block.info

	if page.throttledProcessors.Test(requester) {
		if now < page.throttleWindowEnd && requester != page.doNotThrottle {
			return Hint{Type: HintThrottle}
		}

		s.endThrottle(block, info, page, pageIndex, requester)
	}

	memutils.Assert(!page.throttledProcessors.Test(requester), "%s is still throttled on page %d", requester, pageIndex)

	// The streak ended on its own
	if now-page.lastEventTime > uint64(params.Lapse) && !page.pinned {
		return Hint{Type: HintNone}
	}

	page.processors.Set(requester)

	memutils.Assert(page.hasMigrationEvents || page.hasRevocationEvents, "thrashing page %d has no recorded events", pageIndex)

	s.throttleUpdate(page, requester, params, now)

	// Revocations on a pinned page come from system-wide atomics. Moving the page cannot help, so
	// accesses are serialized instead.
	if page.pinned && page.hasRevocationEvents && requester != page.doNotThrottle {
		return Hint{Type: HintThrottle}
	}

	return s.migrationHint(block, page, pageIndex, requester, params)
}

// throttleUpdate opens a new throttle window once the previous one ended, and rotates the
// processor exempt from throttling so that consecutive windows favor different processors
func (s *Space) throttleUpdate(page *pageThrashing, requester processor.ID, params *Params, now uint64) {
	if now > page.throttleWindowEnd {
		page.setThrottleWindowEnd(now + uint64(params.Nap))

		if page.doNotThrottle == requester {
			page.doNotThrottle = processor.Invalid
		} else {
			page.doNotThrottle = requester
		}
	} else if !page.doNotThrottle.IsValid() {
		page.doNotThrottle = requester
	}
}

func (s *Space) processorsCanAccess(page *pageThrashing, to processor.ID) bool {
	if !to.IsValid() {
		return false
	}
	return page.processors.Subset(s.topology.AccessibleFrom(to))
}

func (s *Space) processorsHaveFastAccessTo(page *pageThrashing, to processor.ID) bool {
	if !to.IsValid() {
		return false
	}
	return page.processors.Subset(s.topology.FastAccessMask(to))
}

// commonLocations returns the processors whose memory every thrashing processor can access
func (s *Space) commonLocations(page *pageThrashing) processor.Mask {
	var common processor.Mask
	first := true

	page.processors.ForEach(func(id processor.ID) bool {
		if first {
			common = s.topology.CanAccessMask(id)
			first = false
		} else {
			common = common.And(s.topology.CanAccessMask(id))
		}
		return true
	})

	return common
}

func pinHint(residency processor.ID) Hint {
	return Hint{Type: HintPin, Pin: PinHint{Residency: residency}}
}

// migrationHint picks the hint for a page thrashing because of migrations. Policy comes first:
// pin to the preferred location when every thrashing processor can reach it. Next, avoid moving
// data when every thrashing processor has fast access to where it already is. Otherwise the
// exempt processor of the window wins the page, and pinning only happens after the page went
// through PinThreshold throttle windows.
func (s *Space) migrationHint(block *Block, page *pageThrashing, pageIndex PageIndex, requester processor.ID, params *Params) Hint {
	policy := s.residency.Policy(block, pageIndex)
	preferred := policy.PreferredLocation
	doNotThrottle := page.doNotThrottle
	pinnedResidency := page.pinnedResidency

	closest := s.residency.ClosestResident(block, pageIndex, requester)
	if policy.LazilyPopulated {
		// Lazily populated pages start out on the CPU before the residency engine records them
		if !closest.IsValid() {
			closest = processor.CPU
		}
	} else {
		memutils.Assert(closest.IsValid(), "page %d of block %#x has no resident copy", pageIndex, block.start)
	}

	hint := Hint{Type: HintNone}

	switch {
	case s.processorsCanAccess(page, preferred):
		hint = pinHint(preferred)

	case !(preferred.IsValid() && page.processors.Test(preferred)) && s.processorsHaveFastAccessTo(page, closest):
		if closest.IsCPU() {
			// GPUs keep their own copy rather than caching host memory over the link
			if requester.IsGPU() {
				hint = pinHint(requester)
			}
		} else {
			hint = pinHint(closest)
		}

	case requester == preferred:
		switch {
		case page.pinned:
			if preferred == pinnedResidency || preferred == doNotThrottle {
				hint = pinHint(preferred)
			} else {
				hint.Type = HintThrottle
			}
		case preferred != doNotThrottle:
			hint.Type = HintThrottle
		case page.throttleCount >= params.PinThreshold:
			hint = pinHint(preferred)
		}

	case page.pinned:
		switch {
		case requester == doNotThrottle:
			if s.processorsCanAccess(page, requester) {
				hint = pinHint(requester)
			} else if common := s.commonLocations(page); common.Empty() {
				hint = pinHint(requester)
			} else {
				hint = pinHint(s.topology.FindClosest(common, requester))
			}
		case s.topology.AccessibleFrom(pinnedResidency).Test(requester):
			if !policy.LazilyPopulated {
				memutils.Assert(closest == pinnedResidency, "closest resident %s of page %d differs from pinned residency %s", closest, pageIndex, pinnedResidency)
			}
			hint = pinHint(pinnedResidency)
		default:
			hint.Type = HintThrottle
		}

	case requester != doNotThrottle:
		hint.Type = HintThrottle

	case page.throttleCount >= params.PinThreshold:
		hint = pinHint(requester)
	}

	if hint.Type == HintPin && !s.topology.HasMemory(hint.Pin.Residency) {
		hint.Pin.Residency = processor.CPU
	}

	return hint
}

// throttleProcessor adds the requester to the throttled processors of the page. The first time a
// processor is throttled in a window, the throttle count of the page and block are bumped. When
// pinning failed, the exempt processor may end up throttled as well.
func (s *Space) throttleProcessor(block *Block, info *blockThrashing, page *pageThrashing, pageIndex PageIndex, id processor.ID, downgraded bool) {
	if !downgraded {
		memutils.Assert(id != page.doNotThrottle, "throttling exempt processor %s on page %d", id, pageIndex)
	}

	if !page.throttledProcessors.TestAndSet(id) {
		// The CPU is throttled by the caller sleeping, which brackets its own events
		if id.IsGPU() {
			s.recorder.RecordThrottlingStart(s, block.PageAddress(pageIndex), id)
		}

		if !page.pinned {
			page.throttleCount = memutils.SaturatingInc(page.throttleCount, maxThrottleCount)
		}

		info.throttleEvents = memutils.SaturatingInc(info.throttleEvents, ^uint32(0))
	}
}

// endThrottle removes a processor from the throttled processors of the page. The throttle window
// is closed once no processor is left throttled.
func (s *Space) endThrottle(block *Block, info *blockThrashing, page *pageThrashing, pageIndex PageIndex, id processor.ID) {
	memutils.Assert(page.throttledProcessors.Test(id), "ending the throttle of %s on page %d, which is not throttled", id, pageIndex)

	page.throttledProcessors.Clear(id)
	if page.throttledProcessors.Empty() {
		page.setThrottleWindowEnd(0)
	}

	if id.IsGPU() {
		s.recorder.RecordThrottlingEnd(s, block.PageAddress(pageIndex), id)
	}
}

// resetThrottling ends the throttle of every processor on the page
func (s *Space) resetThrottling(block *Block, info *blockThrashing, page *pageThrashing, pageIndex PageIndex) {
	page.throttledProcessors.ForEach(func(id processor.ID) bool {
		s.endThrottle(block, info, page, pageIndex, id)
		return true
	})

	memutils.Assert(page.throttledProcessors.Empty(), "page %d is still throttled after a reset", pageIndex)
}

// pinPage pins the page on residency. The pin descriptor is allocated before any state changes,
// so a failed allocation leaves the page untouched.
func (s *Space) pinPage(block *Block, info *blockThrashing, page *pageThrashing, pageIndex PageIndex, now uint64, residency processor.ID, requester processor.ID) error {
	memutils.Assert(!page.throttledProcessors.Test(requester), "pinning page %d for throttled processor %s", pageIndex, requester)

	params := s.params()

	var pin *pinnedPage
	if !page.pinned && params.PinDuration > 0 {
		var err error
		pin, err = s.allocatePin()
		if err != nil {
			return err
		}
	}

	// Flush pending throttle ends when pinning for the first time or on a new residency
	if !page.pinned || !s.residency.ResidentProcessors(block, pageIndex).Test(residency) {
		s.resetThrottling(block, info, page, pageIndex)
	}

	if !page.pinned {
		if pin != nil {
			pin.block = block
			pin.pageIndex = pageIndex
			pin.deadline = now + uint64(params.PinDuration)

			s.registry.mutex.Lock()

			s.registry.push(pin)
			info.pushPinned(pin)

			// A sweep is already pending for an older deadline otherwise. Every path that empties
			// the registry cancels the pending run, so an empty registry has none.
			if s.registry.count == 1 && !s.registry.inTeardown && s.useMutex {
				scheduled := s.registry.work.Schedule(params.PinDuration)
				memutils.Assert(scheduled, "unpin sweep was already scheduled with an empty registry")
			}

			s.registry.mutex.Unlock()
		}

		page.throttleCount = 0
		page.pinned = true
		info.pinnedCount++
		info.pinnedPages.Set(pageIndex)
	}

	page.pinnedResidency = residency

	return nil
}

// unpinPage clears the pin state of the page. Remote mappings are left to the caller.
func (s *Space) unpinPage(block *Block, info *blockThrashing, page *pageThrashing, pageIndex PageIndex) {
	memutils.Assert(page.pinned, "unpinning page %d, which is not pinned", pageIndex)

	pin := info.findPinned(pageIndex)
	memutils.Assert(pin != nil || s.params().PinDuration == 0, "pinned page %d has no pin descriptor", pageIndex)

	if pin != nil {
		freePin := false

		// Leaving the block list tells a concurrent sweep to skip the page. Leaving the registry
		// makes this side responsible for the descriptor.
		s.registry.mutex.Lock()
		info.removePinned(pin)

		if pin.inSpaceList {
			freePin = true
			s.registry.remove(pin)

			if s.registry.count == 0 {
				s.registry.work.Cancel()
			}
		}
		s.registry.mutex.Unlock()

		if freePin {
			s.freePin(pin)
		}
	}

	page.pinnedResidency = processor.Invalid
	page.pinned = false
	info.pinnedPages.Clear(pageIndex)
	info.pinnedCount--
}

// resetPage clears the thrashing history of a thrashing page. Remote mappings are left to the
// caller.
func (s *Space) resetPage(block *Block, info *blockThrashing, pageIndex PageIndex) {
	page := &info.pages[pageIndex]

	memutils.Assert(info.thrashingCount > 0, "resetting page %d of block %#x without thrashing pages", pageIndex, block.start)
	memutils.Assert(info.thrashingPages.Test(pageIndex), "resetting page %d of block %#x, which is not thrashing", pageIndex, block.start)
	memutils.Assert(page.thrashingEvents > 0, "resetting page %d of block %#x without thrashing events", pageIndex, block.start)

	s.resetThrottling(block, info, page, pageIndex)

	if page.pinned {
		s.unpinPage(block, info, page, pageIndex)
	}

	page.lastEventTime = 0
	page.hasMigrationEvents = false
	page.hasRevocationEvents = false
	page.thrashingEvents = 0
	page.processors.Zero()

	if info.thrashingPages.TestAndClear(pageIndex) {
		info.thrashingCount--
	}

	memutils.DebugValidate(pageValidator{info: info, index: pageIndex, params: s.params()})
}

// resetPagesInRegion resets every thrashing page of the block within region
func (s *Space) resetPagesInRegion(block *Block, region Region) {
	info := block.info
	if info == nil || info.pages == nil {
		return
	}

	info.thrashingPages.ForEachInRegion(region, func(index PageIndex) bool {
		s.resetPage(block, info, index)
		return true
	})
}

// thrashingDetected marks the page as thrashing and reports it
func (s *Space) thrashingDetected(block *Block, info *blockThrashing, page *pageThrashing, pageIndex PageIndex, id processor.ID) {
	address := block.PageAddress(pageIndex)

	s.recorder.RecordThrashing(s, address, s.pageSize, page.processors)
	if !info.thrashingPages.TestAndSet(pageIndex) {
		info.thrashingCount++
	}

	s.module.incStats(id, statsThrashing)

	s.logger.Debug("thrashing detected",
		slog.Uint64("address", address),
		slog.String("processors", page.processors.String()))
}

// GetThrashingProcessors returns the processors thrashing on the page containing address. It is
// meant to be called right after the page was reported as thrashing. The block lock must be held.
func (s *Space) GetThrashingProcessors(block *Block, address uint64) (processor.Mask, error) {
	pageIndex, err := block.PageIndex(address)
	if err != nil {
		return processor.Mask{}, err
	}

	if !s.params().Enabled {
		return processor.Mask{}, errors.Wrap(ErrInvalidState, "thrashing detection is disabled")
	}

	info := block.info
	if info == nil || info.pages == nil {
		return processor.Mask{}, errors.Wrapf(ErrInvalidState, "block %#x has no page records", block.start)
	}

	return info.pages[pageIndex].processors, nil
}

// GetThrashingPages returns the thrashing pages of the block. It returns false when detection
// is disabled or no page of the block is thrashing. The block lock must be held.
func (s *Space) GetThrashingPages(block *Block) (PageMask, bool) {
	if !s.params().Enabled {
		return PageMask{}, false
	}

	info := block.info
	if info == nil || info.thrashingCount == 0 {
		return PageMask{}, false
	}

	return info.thrashingPages, true
}
