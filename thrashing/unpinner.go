package thrashing

import (
	"sync"
	"time"

	"github.com/vkngwrapper/uvm/memutils"
	"golang.org/x/exp/slog"
)

// unpinTimerGranularity is how early the sweep may unpin a page relative to its deadline
const unpinTimerGranularity = 20 * time.Microsecond

// unpinWork is a cancellable delayed task. At most one run is pending at a time. A run that
// starts after being cancelled or superseded does nothing.
type unpinWork struct {
	clock Clock
	run   func()

	mutex      sync.Mutex
	timer      Timer
	pending    bool
	generation uint64

	running sync.Mutex
}

func (w *unpinWork) Init(clock Clock, run func()) {
	w.clock = clock
	w.run = run
}

// Schedule arms the task to run after delay. It returns false without doing anything if a run is
// already pending.
func (w *unpinWork) Schedule(delay time.Duration) bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.pending {
		return false
	}

	if delay < 0 {
		delay = 0
	}

	w.pending = true
	w.generation++
	generation := w.generation
	w.timer = w.clock.AfterFunc(delay, func() {
		w.fire(generation)
	})

	return true
}

func (w *unpinWork) fire(generation uint64) {
	w.mutex.Lock()
	if !w.pending || generation != w.generation {
		w.mutex.Unlock()
		return
	}
	w.pending = false
	w.timer = nil
	w.mutex.Unlock()

	w.RunNow()
}

// RunNow runs the task on the calling goroutine, serialized with timer-driven runs
func (w *unpinWork) RunNow() {
	w.running.Lock()
	defer w.running.Unlock()

	w.run()
}

// Cancel disarms a pending run. It returns false if no run was pending. A run already in
// progress is not interrupted.
func (w *unpinWork) Cancel() bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.pending {
		return false
	}

	w.pending = false
	w.generation++
	w.timer.Stop()
	w.timer = nil

	return true
}

// CancelSync disarms a pending run and waits for a run in progress to complete
func (w *unpinWork) CancelSync() bool {
	cancelled := w.Cancel()

	w.running.Lock()
	//nolint:staticcheck
	w.running.Unlock()

	return cancelled
}

func (w *unpinWork) Pending() bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.pending
}

// RunUnpinSweep unpins every page whose pin has expired on the calling goroutine. Spaces created
// with SpaceCreateExternallySynchronized must call it periodically. The caller must not hold the
// space lock or any block lock.
func (s *Space) RunUnpinSweep() {
	s.registry.work.RunNow()
}

// unpinSweep processes the registry from its head until it finds a page that is not due yet,
// then rearms itself for that page's deadline
func (s *Space) unpinSweep() {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.registry.inTeardown {
		return
	}

	unpinned := 0
	for {
		s.registry.mutex.Lock()
		pin := s.registry.head
		if pin == nil {
			s.registry.mutex.Unlock()
			break
		}

		now := s.clock.Now()
		if pin.deadline > now+uint64(unpinTimerGranularity) {
			if s.useMutex {
				s.registry.work.Schedule(time.Duration(pin.deadline - now))
			}
			s.registry.mutex.Unlock()
			break
		}

		// The sweep owns the descriptor from here on
		s.registry.remove(pin)
		if s.registry.count == 0 {
			// A manual sweep may empty the registry ahead of the armed timer
			s.registry.work.Cancel()
		}
		s.registry.mutex.Unlock()

		block := pin.block
		block.Lock()

		// A concurrent unpin already cleared the tracking state if the descriptor left the block list
		if pin.inBlockList {
			info := block.info
			memutils.Assert(info != nil, "pinned page %d of block %#x has no tracking state", pin.pageIndex, block.start)
			memutils.Assert(info.pinnedPages.Test(pin.pageIndex), "page %d of block %#x is in the unpin registry but not pinned", pin.pageIndex, block.start)

			err := s.UnmapRemotePinnedPagesAll(block, RegionForPage(pin.pageIndex))
			if err != nil {
				s.logger.Warn("Space::unpinSweep failed to unmap remote mappings",
					slog.Uint64("address", block.PageAddress(pin.pageIndex)),
					slog.Any("error", err))
			}

			s.resetPage(block, info, pin.pageIndex)
			unpinned++
		}

		block.Unlock()
		s.freePin(pin)
	}

	if unpinned > 0 {
		s.logger.Debug("Space::unpinSweep", slog.Int("unpinned", unpinned))
	}
}
