package thrashing

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/uvm/memutils"
	"github.com/vkngwrapper/uvm/processor"
	"golang.org/x/exp/slog"
)

// destroyInfo resets every thrashing page of the block and drops its tracking state
func (s *Space) destroyInfo(block *Block) {
	if block.info == nil {
		return
	}

	s.resetPagesInRegion(block, block.Region())

	memutils.Assert(block.info.pinnedListLen == 0, "block %#x still has %d pin descriptors after a reset", block.start, block.info.pinnedListLen)
	block.info = nil
}

// OnBlockDestroy drops the tracking state of a block that is being destroyed and unregisters it
// from the space. The block lock must be held.
func (s *Space) OnBlockDestroy(block *Block) {
	s.destroyInfo(block)
	s.unregisterBlock(block)

	s.logger.Debug("Space::OnBlockDestroy", slog.Uint64("block", block.start))
}

// OnBlockShrink drops the tracking state of a block whose range shrank. The block stays
// registered. The block lock must be held.
func (s *Space) OnBlockShrink(block *Block) {
	s.destroyInfo(block)

	s.logger.Debug("Space::OnBlockShrink", slog.Uint64("block", block.start))
}

// OnBlockMunmap resets the thrashing pages of the block within the unmapped region. The block
// lock must be held.
func (s *Space) OnBlockMunmap(block *Block, region Region) error {
	if region.Empty() || int(region.Outer) > block.pageCount {
		return errors.Wrapf(ErrInvalidArgument, "region [%d, %d) is not within the %d pages of block %#x", region.First, region.Outer, block.pageCount, block.start)
	}

	s.resetPagesInRegion(block, region)

	s.logger.Debug("Space::OnBlockMunmap",
		slog.Uint64("block", block.start),
		slog.Int("first", int(region.First)),
		slog.Int("outer", int(region.Outer)))

	return nil
}

// OnModuleUnload drops the tracking state of a block because the engine is going away. The block
// lock must be held.
func (s *Space) OnModuleUnload(block *Block) {
	s.destroyInfo(block)
}

// UnmapRemotePinnedPagesAll removes the remote mappings of the pinned pages of the block within
// region. Processors in the AccessedBy policy keep their mappings. A processor holding a copy of
// some pages of the block only loses the mappings of the pinned pages it is not resident on.
// The block lock must be held.
func (s *Space) UnmapRemotePinnedPagesAll(block *Block, region Region) error {
	info := block.info
	if info == nil || info.pages == nil {
		return nil
	}

	if info.pinnedPages.Empty() {
		return nil
	}

	policy := s.residency.Policy(block, region.First)
	unmapProcessors := s.residency.MappedProcessors(block).AndNot(policy.AccessedBy)

	var err error
	unmapProcessors.ForEach(func(id processor.ID) bool {
		pages := info.pinnedPages

		resident := s.residency.ResidentPages(block, id)
		if !resident.Empty() {
			pages = pages.AndNot(resident)
			if pages.Empty() {
				return true
			}
		}

		pages = pages.And(RegionMask(region))
		if pages.Empty() {
			return true
		}

		if unmapErr := s.residency.Unmap(block, id, region, pages); unmapErr != nil {
			err = errors.Wrapf(unmapErr, "failed to unmap %s from pinned pages %s of block %#x", id, pages, block.start)
			return false
		}
		return true
	})

	return err
}
