package sim

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/uvm/processor"
	"github.com/vkngwrapper/uvm/thrashing"
	"golang.org/x/exp/slog"
)

// SimulatorOptions contains the settings of a new Simulator
type SimulatorOptions struct {
	// GPUs is the number of GPUs sharing the address space with the CPU. GPUs can map CPU memory
	// but not the memory of other GPUs.
	GPUs int
	// Pages is the number of pages of the simulated block
	Pages int
	// Gap is how far the clock moves between two faults
	Gap time.Duration
	// Tunables is the module configuration. DefaultTunables is used when it is left empty.
	Tunables *thrashing.Tunables
}

// Simulator drives a thrashing module through faults and migrations on a single block, servicing
// every hint the way a fault handler would. The clock only moves when the simulator moves it.
type Simulator struct {
	logger *slog.Logger
	gap    time.Duration

	Clock     *ManualClock
	Topology  *processor.Topology
	Residency *Residency
	Module    *thrashing.Module
	Space     *thrashing.Space
	Block     *thrashing.Block

	gpus  []processor.ID
	hints map[thrashing.HintType]int
}

func NewSimulator(logger *slog.Logger, options SimulatorOptions) (*Simulator, error) {
	if options.GPUs < 1 || options.GPUs >= processor.MaxProcessors {
		return nil, errors.Newf("GPU count %d must be within [1, %d)", options.GPUs, processor.MaxProcessors)
	}
	if options.Pages == 0 {
		options.Pages = 16
	}
	if options.Gap <= 0 {
		options.Gap = 100 * time.Microsecond
	}

	tunables := thrashing.DefaultTunables()
	if options.Tunables != nil {
		tunables = *options.Tunables
	}

	s := &Simulator{
		logger:   logger,
		gap:      options.Gap,
		Clock:    NewManualClock(uint64(time.Second)),
		Topology: processor.NewTopology(nil),
		hints:    make(map[thrashing.HintType]int),
	}

	for i := 0; i < options.GPUs; i++ {
		id := processor.GPU(i)
		if err := s.Topology.RegisterProcessor(id, true); err != nil {
			return nil, err
		}
		if err := s.Topology.SetAccess(id, processor.CPU); err != nil {
			return nil, err
		}
		s.gpus = append(s.gpus, id)
	}
	s.Residency = NewResidency(s.Topology)

	module, err := thrashing.Init(logger, tunables, thrashing.ModuleOptions{
		DebugStats: true,
		Clock:      s.Clock,
	})
	if err != nil {
		return nil, err
	}
	s.Module = module

	s.Space, err = module.NewSpace(logger, thrashing.SpaceOptions{
		Residency: s.Residency,
		Topology:  s.Topology,
	})
	if err != nil {
		return nil, err
	}

	for _, id := range s.gpus {
		if err := module.AddGPU(id); err != nil {
			return nil, err
		}
		if err := s.Space.RegisterGPU(id); err != nil {
			return nil, err
		}
	}

	s.Block, err = s.Space.CreateBlock(0, options.Pages)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// GPUs returns the GPUs of the simulated system
func (s *Simulator) GPUs() []processor.ID {
	return s.gpus
}

// Hints returns how many hints of each type were returned so far
func (s *Simulator) Hints() map[thrashing.HintType]int {
	hints := make(map[thrashing.HintType]int, len(s.hints))
	for hintType, count := range s.hints {
		hints[hintType] = count
	}
	return hints
}

func (s *Simulator) locked(f func() error) error {
	s.Space.RLock()
	s.Block.Lock()
	defer s.Space.RUnlock()
	defer s.Block.Unlock()

	return f()
}

func (s *Simulator) migrate(page thrashing.PageIndex, destination processor.ID) error {
	s.Residency.MakeResident(s.Block, page, destination)

	return s.Space.OnMigration(s.Block, thrashing.MigrationEvent{
		Address:     s.Block.PageAddress(page),
		Length:      s.Space.PageSize(),
		Destination: destination,
		Cause:       thrashing.CauseReplayableFault,
		Mode:        thrashing.TransferModeMove,
	})
}

// Fault services a fault of requester on the page and returns the hint it got. Throttled faults
// are dropped: the requester faults again on its next access.
func (s *Simulator) Fault(page thrashing.PageIndex, requester processor.ID) (thrashing.Hint, error) {
	var hint thrashing.Hint

	err := s.locked(func() error {
		var err error
		hint, err = s.Space.GetHint(s.Block, s.Block.PageAddress(page), requester)
		if err != nil {
			return err
		}

		switch hint.Type {
		case thrashing.HintNone:
			if s.Residency.ResidentProcessors(s.Block, page).Test(requester) {
				return nil
			}
			return s.migrate(page, requester)

		case thrashing.HintPin:
			if !s.Residency.ResidentProcessors(s.Block, page).Test(hint.Pin.Residency) {
				if err := s.migrate(page, hint.Pin.Residency); err != nil {
					return err
				}
			}
			s.Residency.Map(s.Block, requester)
		}

		return nil
	})
	if err != nil {
		return thrashing.Hint{}, errors.Wrapf(err, "fault of %s on page %d", requester, page)
	}

	s.hints[hint.Type]++
	return hint, nil
}

// Revoke reports that the access permissions of id on the page were revoked
func (s *Simulator) Revoke(page thrashing.PageIndex, id processor.ID) error {
	return s.locked(func() error {
		return s.Space.OnRevocation(s.Block, thrashing.RevocationEvent{
			Address:   s.Block.PageAddress(page),
			Length:    s.Space.PageSize(),
			Processor: id,
		})
	})
}

// Step moves the clock forward by the gap between faults, running the unpin sweep if it comes due
func (s *Simulator) Step() {
	s.Clock.Advance(s.gap)
}

// Validate checks the invariants of the simulated space
func (s *Simulator) Validate() error {
	s.Space.Lock()
	defer s.Space.Unlock()

	return s.Space.Validate()
}

// Close unloads the space and releases the module
func (s *Simulator) Close() error {
	if err := s.Space.Unload(); err != nil {
		return err
	}
	return s.Module.Exit()
}
