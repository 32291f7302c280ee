package thrashing

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/rs/xid"
	"github.com/vkngwrapper/uvm/internal/utils"
	"github.com/vkngwrapper/uvm/memutils"
	"github.com/vkngwrapper/uvm/processor"
	"golang.org/x/exp/slog"
)

// ModuleOptions contains optional settings when initializing the module
type ModuleOptions struct {
	// SimulatedDevices is the number of simulated or emulated accelerators in the system. When it is
	// not zero, the lapse and pin tunables left at their defaults are replaced by much longer values.
	SimulatedDevices int
	// DebugStats enables the per-processor statistics. Without it, no statistics are kept.
	DebugStats bool
	// Clock is the time source of every space created from the module. SystemClock is used when
	// it is left empty.
	Clock Clock
}

// Module is the process-wide state of the thrashing engine: the normalized tunables, the
// per-processor statistics, and the spaces loaded from it.
type Module struct {
	logger   *slog.Logger
	tunables Tunables
	options  ModuleOptions
	clock    Clock

	stats [processor.MaxProcessors]processorStatsSlot

	spacesMutex sync.Mutex
	spaces      *swiss.Map[xid.ID, *Space]
}

// Init normalizes the tunables and creates the module. Out-of-range tunables are replaced by
// their default value.
func Init(logger *slog.Logger, tunables Tunables, options ModuleOptions) (*Module, error) {
	if logger == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "a logger is required")
	}
	if options.SimulatedDevices < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "simulated device count %d is negative", options.SimulatedDevices)
	}

	module := &Module{
		logger:   logger,
		tunables: tunables.Normalize(logger),
		options:  options,
		clock:    options.Clock,
		spaces:   swiss.NewMap[xid.ID, *Space](8),
	}

	if module.clock == nil {
		module.clock = SystemClock()
	}

	if options.DebugStats {
		module.stats[processor.CPU].create()
	}

	logger.Debug("thrashing module initialized",
		slog.Bool("enabled", module.tunables.Enable != 0),
		slog.Int("simulated_devices", options.SimulatedDevices))

	return module, nil
}

// Exit releases the module. Every space must have been unloaded.
func (m *Module) Exit() error {
	m.spacesMutex.Lock()
	count := m.spaces.Count()
	m.spacesMutex.Unlock()

	if count > 0 {
		return errors.Wrapf(ErrInvalidState, "%d spaces are still loaded", count)
	}

	for i := range m.stats {
		m.stats[i].destroy()
	}

	return nil
}

// Tunables returns the normalized tunables of the module
func (m *Module) Tunables() Tunables {
	return m.tunables
}

// Enabled returns false if thrashing detection was disabled for the whole module
func (m *Module) Enabled() bool {
	return m.tunables.Enable != 0
}

// AddGPU creates the statistics of a GPU. It does nothing unless ModuleOptions.DebugStats is set.
func (m *Module) AddGPU(id processor.ID) error {
	if !id.IsGPU() {
		return errors.Wrapf(ErrInvalidArgument, "processor %s is not a GPU", id)
	}

	if !m.options.DebugStats {
		return nil
	}

	if !m.stats[id].create() {
		return errors.Wrapf(ErrInvalidState, "statistics for %s already exist", id)
	}
	return nil
}

// RemoveGPU destroys the statistics of a GPU, if it has any
func (m *Module) RemoveGPU(id processor.ID) {
	if !id.IsGPU() {
		return
	}
	m.stats[id].destroy()
}

func (m *Module) processorStats(id processor.ID) *ProcessorStats {
	if !id.IsValid() {
		return nil
	}
	return m.stats[id].get()
}

// Statistics returns a snapshot of the statistics of a processor. It returns false if the
// processor has no statistics.
func (m *Module) Statistics(id processor.ID) (memutils.Statistics, bool) {
	stats := m.processorStats(id)
	if stats == nil {
		return memutils.Statistics{}, false
	}
	return stats.Snapshot(), true
}

// TotalStatistics returns the sum of the statistics of every processor
func (m *Module) TotalStatistics() memutils.Statistics {
	var total memutils.Statistics
	for i := range m.stats {
		if stats := m.stats[i].get(); stats != nil {
			snapshot := stats.Snapshot()
			total.AddStatistics(&snapshot)
		}
	}
	return total
}

// NewSpace loads a new address space. Its parameters are derived from the module tunables.
func (m *Module) NewSpace(logger *slog.Logger, options SpaceOptions) (*Space, error) {
	if logger == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "a logger is required")
	}
	if options.Residency == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "a residency engine is required")
	}
	if options.Topology == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "a processor topology is required")
	}

	pageSize := options.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if err := memutils.CheckPow2(pageSize, "SpaceOptions.PageSize"); err != nil {
		return nil, errors.Wrap(ErrInvalidArgument, err.Error())
	}

	useMutex := options.Flags&SpaceCreateExternallySynchronized == 0
	id := xid.New()

	space := &Space{
		id:             id,
		logger:         logger.With(slog.String("space", id.String())),
		module:         m,
		clock:          m.clock,
		residency:      options.Residency,
		topology:       options.Topology,
		recorder:       options.Recorder,
		allocationHook: options.AllocationHook,
		pageSize:       pageSize,
		flags:          options.Flags,
		useMutex:       useMutex,
		mutex:          utils.OptionalRWMutex{UseMutex: useMutex},
		blocksMutex:    utils.OptionalMutex{UseMutex: useMutex},
		blocks:         swiss.NewMap[uint64, *Block](42),
	}

	if space.recorder == nil {
		space.recorder = nopRecorder{}
	}

	space.registry.mutex.UseMutex = useMutex
	space.registry.work.Init(m.clock, space.unpinSweep)
	space.setParams(deriveParams(m.tunables, m.options.SimulatedDevices))

	m.spacesMutex.Lock()
	m.spaces.Put(id, space)
	m.spacesMutex.Unlock()

	space.logger.Debug("Module::NewSpace", slog.Bool("enabled", space.params().Enabled))

	return space, nil
}

func (m *Module) removeSpace(space *Space) {
	m.spacesMutex.Lock()
	defer m.spacesMutex.Unlock()

	m.spaces.Delete(space.id)
}

// Spaces returns the spaces currently loaded from the module, in no particular order
func (m *Module) Spaces() []*Space {
	m.spacesMutex.Lock()
	defer m.spacesMutex.Unlock()

	spaces := make([]*Space, 0, m.spaces.Count())
	m.spaces.Iter(func(_ xid.ID, space *Space) bool {
		spaces = append(spaces, space)
		return false
	})
	return spaces
}

func (m *Module) printProcessorStats(json jwriter.ObjectState) {
	statsObj := json.Name("Processors").Object()
	defer statsObj.End()

	for i := range m.stats {
		stats := m.stats[i].get()
		if stats == nil {
			continue
		}

		snapshot := stats.Snapshot()
		processorObj := statsObj.Name(processor.ID(i).String()).Object()
		snapshot.PrintJson(processorObj)
		processorObj.End()
	}
}

// BuildStatsString returns a JSON document with the statistics of every processor
func (m *Module) BuildStatsString() string {
	writer := jwriter.NewWriter()
	obj := writer.Object()

	obj.Name("Enabled").Bool(m.Enabled())

	total := m.TotalStatistics()
	totalObj := obj.Name("Total").Object()
	total.PrintJson(totalObj)
	totalObj.End()

	m.printProcessorStats(obj)

	obj.End()
	return string(writer.Bytes())
}
