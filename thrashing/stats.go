package thrashing

import (
	"sync/atomic"

	"github.com/vkngwrapper/uvm/memutils"
	"github.com/vkngwrapper/uvm/processor"
)

// ProcessorStats holds the thrashing mitigation counters of a single processor. The counters are
// updated without any lock held.
type ProcessorStats struct {
	thrashing atomic.Uint64
	throttle  atomic.Uint64
	pinLocal  atomic.Uint64
	pinRemote atomic.Uint64
}

func (s *ProcessorStats) Snapshot() memutils.Statistics {
	return memutils.Statistics{
		Thrashing: s.thrashing.Load(),
		Throttle:  s.throttle.Load(),
		PinLocal:  s.pinLocal.Load(),
		PinRemote: s.pinRemote.Load(),
	}
}

type processorStatsSlot struct {
	stats atomic.Pointer[ProcessorStats]
}

// create returns false if the stats already existed
func (s *processorStatsSlot) create() bool {
	return s.stats.CompareAndSwap(nil, &ProcessorStats{})
}

func (s *processorStatsSlot) destroy() {
	s.stats.Store(nil)
}

func (s *processorStatsSlot) get() *ProcessorStats {
	return s.stats.Load()
}

type statsCounter int

const (
	statsThrashing statsCounter = iota
	statsThrottle
	statsPinLocal
	statsPinRemote
)

// incStats bumps a counter of the processor. Processors without statistics are ignored.
func (m *Module) incStats(id processor.ID, counter statsCounter) {
	stats := m.processorStats(id)
	if stats == nil {
		return
	}

	switch counter {
	case statsThrashing:
		stats.thrashing.Add(1)
	case statsThrottle:
		stats.throttle.Add(1)
	case statsPinLocal:
		stats.pinLocal.Add(1)
	case statsPinRemote:
		stats.pinRemote.Add(1)
	}
}
