package thrashing

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/uvm/memutils"
	"github.com/vkngwrapper/uvm/processor"
	"golang.org/x/exp/slog"
)

// MigrationEvent describes a completed migration of a range of pages
type MigrationEvent struct {
	Address uint64
	Length  uint64
	// Destination is the processor the pages were made resident on
	Destination processor.ID
	Cause       MigrationCause
	Mode        TransferMode
	// ReadDuplication is set when the range had read duplication enabled
	ReadDuplication bool
	// Staging marks the first hop of a migration staged through an intermediate processor. Only
	// the final hop is considered.
	Staging bool
}

// RevocationEvent describes the revocation of the access permissions of a processor on a range
// of pages
type RevocationEvent struct {
	Address   uint64
	Length    uint64
	Processor processor.ID
}

type eventKind int

const (
	eventMigration eventKind = iota
	eventRevocation
)

// OnMigration records a completed migration. The block lock must be held. Migrations that do not
// come from the processors' own access patterns reset the thrashing state of the range instead.
func (s *Space) OnMigration(block *Block, event MigrationEvent) error {
	s.assertLocked(block)

	if !event.Destination.IsValid() {
		return errors.Wrapf(ErrInvalidArgument, "migration destination %s is not a valid processor", event.Destination)
	}

	// Evictions run without the space lock
	if event.Cause == CauseEviction || event.Staging {
		return nil
	}

	region, err := block.RegionFromRange(event.Address, event.Length)
	if err != nil {
		return err
	}

	if !s.params().Enabled {
		return nil
	}

	// User commands and advice take precedence over the heuristics
	if !event.Cause.organic() || event.Mode != TransferModeMove || event.ReadDuplication {
		s.resetPagesInRegion(block, region)
		return nil
	}

	s.checkMigratedPages(block, region, event.Destination, event.Cause)

	if s.isPinnedPagesUpdate(block, region, event) {
		return nil
	}

	s.recordEvent(block, region, event.Destination, eventMigration)
	return nil
}

// OnRevocation records the revocation of the access permissions of a processor. The block lock
// must be held.
func (s *Space) OnRevocation(block *Block, event RevocationEvent) error {
	s.assertLocked(block)

	if !event.Processor.IsValid() {
		return errors.Wrapf(ErrInvalidArgument, "revoked processor %s is not valid", event.Processor)
	}

	region, err := block.RegionFromRange(event.Address, event.Length)
	if err != nil {
		return err
	}

	if !s.params().Enabled {
		return nil
	}

	s.recordEvent(block, region, event.Processor, eventRevocation)
	return nil
}

// checkMigratedPages asserts that no pinned page was moved away from its pinned residency and
// that prefetching never touched a thrashing page
func (s *Space) checkMigratedPages(block *Block, region Region, destination processor.ID, cause MigrationCause) {
	info := block.info
	if info == nil || info.pages == nil {
		return
	}

	for index := region.First; index < region.Outer; index++ {
		page := &info.pages[index]
		memutils.Assert(!page.pinned || page.pinnedResidency == destination,
			"page %d of block %#x migrated to %s instead of its pinned residency %s", index, block.start, destination, page.pinnedResidency)

		if cause == CausePrefetch {
			memutils.Assert(!info.thrashingPages.Test(index), "prefetched thrashing page %d of block %#x", index, block.start)
		}
	}
}

// isPinnedPagesUpdate returns true if a fault migrated pages that are all pinned, which means the
// migration moved them to their pinned residency
func (s *Space) isPinnedPagesUpdate(block *Block, region Region, event MigrationEvent) bool {
	if event.Cause != CauseReplayableFault && event.Cause != CauseAccessCounter {
		return false
	}

	info := block.info
	if info == nil || info.pages == nil {
		return false
	}

	if !info.pinnedPages.RegionFull(region) {
		return false
	}

	for index := region.First; index < region.Outer; index++ {
		memutils.Assert(info.pages[index].pinnedResidency == event.Destination,
			"pinned page %d of block %#x migrated to %s instead of %s", index, block.start, event.Destination, info.pages[index].pinnedResidency)
	}

	return true
}

// getOrCreateInfo returns the tracking state of the block, creating it if needed. It returns nil
// if the tracking state could not be allocated.
func (s *Space) getOrCreateInfo(block *Block) *blockThrashing {
	if block.info != nil {
		return block.info
	}

	if err := s.allocate(AllocationBlockRecord); err != nil {
		s.logger.Debug("Space::getOrCreateInfo", slog.Uint64("block", block.start), slog.Any("error", err))
		return nil
	}

	block.info = &blockThrashing{lastProcessor: processor.Invalid}
	return block.info
}

// recordEvent updates the page records of the region for an event of the given processor
func (s *Space) recordEvent(block *Block, region Region, id processor.ID, kind eventKind) {
	info := s.getOrCreateInfo(block)
	if info == nil {
		return
	}

	params := s.params()
	now := s.clock.Now()
	lapse := uint64(params.Lapse)

	defer func() {
		info.lastEventTime = now
		info.lastProcessor = id
	}()

	if info.pages == nil {
		// Single-processor access patterns never pay for the page records
		if info.lastEventTime == 0 || info.lastProcessor == id || now-info.lastEventTime > lapse {
			return
		}

		if err := s.allocate(AllocationPageRecords); err != nil {
			s.logger.Debug("Space::recordEvent failed to allocate page records",
				slog.Uint64("block", block.start),
				slog.Any("error", err))
			return
		}

		info.pages = newPageRecords(block.pageCount)
	}

	for index := region.First; index < region.Outer; index++ {
		page := &info.pages[index]
		lastEventTime := page.lastEventTime

		// The fault that triggered the migration unpinned the page in GetHint
		if kind == eventMigration {
			memutils.Assert(!page.pinned, "pinned page %d of block %#x was migrated", index, block.start)
		}

		page.processors.Set(id)
		page.setLastEventTime(now)

		if lastEventTime == 0 {
			continue
		}

		if now-lastEventTime <= lapse {
			previousEvents := page.thrashingEvents
			page.thrashingEvents = memutils.SaturatingInc(page.thrashingEvents, maxThrashingEvents)

			// The counter saturates at the largest threshold, so only the crossing itself counts
			if previousEvents < params.Threshold && page.thrashingEvents >= params.Threshold {
				s.thrashingDetected(block, info, page, index, id)
			}

			if page.thrashingEvents >= params.Threshold {
				info.lastThrashingTime = now
			}

			if kind == eventMigration {
				page.hasMigrationEvents = true
			} else {
				page.hasRevocationEvents = true
			}
		} else if page.thrashingEvents >= params.Threshold && !page.pinned {
			s.resetPage(block, info, index)
		}

		memutils.DebugValidate(pageValidator{info: info, index: index, params: params})
	}
}
