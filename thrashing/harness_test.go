package thrashing_test

import (
	"io"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/uvm/internal/sim"
	"github.com/vkngwrapper/uvm/memutils"
	"github.com/vkngwrapper/uvm/processor"
	"github.com/vkngwrapper/uvm/thrashing"
	"golang.org/x/exp/slog"
)

const (
	testPageSize   uint64 = 4096
	testBlockStart uint64 = 0x200000
	testBlockPages int    = 16

	// testClockStart is a multiple of the stored timestamp resolution
	testClockStart uint64 = 1 << 30
)

var (
	gpu0 = processor.GPU(0)
	gpu1 = processor.GPU(1)
)

var errPoolExhausted = errors.New("pool exhausted")

type HarnessSetup struct {
	Tunables         func(tunables *thrashing.Tunables)
	SimulatedDevices int
	DebugStats       bool
	Flags            thrashing.SpaceCreateFlags
	Recorder         thrashing.EventRecorder
	AllocationHook   func(kind thrashing.AllocationKind) error
	// Residency replaces the in-memory residency model when set
	Residency thrashing.Residency
}

type harness struct {
	t         *testing.T
	clock     *sim.ManualClock
	topology  *processor.Topology
	residency *sim.Residency
	module    *thrashing.Module
	space     *thrashing.Space
	block     *thrashing.Block

	assertionsAtStart uint64
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard))
}

// twoGPUTopology has the CPU and two GPUs that can access the CPU but not each other
func twoGPUTopology(t *testing.T) *processor.Topology {
	topology := processor.NewTopology(nil)
	for _, id := range []processor.ID{gpu0, gpu1} {
		require.NoError(t, topology.RegisterProcessor(id, true))
		require.NoError(t, topology.SetAccess(id, processor.CPU))
	}
	return topology
}

func newHarness(t *testing.T, setup HarnessSetup) *harness {
	tunables := thrashing.DefaultTunables()
	if setup.Tunables != nil {
		setup.Tunables(&tunables)
	}

	h := &harness{
		t:                 t,
		clock:             sim.NewManualClock(testClockStart),
		topology:          twoGPUTopology(t),
		assertionsAtStart: memutils.FailedAssertions(),
	}

	module, err := thrashing.Init(testLogger(), tunables, thrashing.ModuleOptions{
		SimulatedDevices: setup.SimulatedDevices,
		DebugStats:       setup.DebugStats,
		Clock:            h.clock,
	})
	require.NoError(t, err)
	h.module = module

	residency := setup.Residency
	if residency == nil {
		h.residency = sim.NewResidency(h.topology)
		residency = h.residency
	}

	space, err := module.NewSpace(testLogger(), thrashing.SpaceOptions{
		Flags:          setup.Flags,
		PageSize:       testPageSize,
		Residency:      residency,
		Topology:       h.topology,
		Recorder:       setup.Recorder,
		AllocationHook: setup.AllocationHook,
	})
	require.NoError(t, err)
	h.space = space

	block, err := space.CreateBlock(testBlockStart, testBlockPages)
	require.NoError(t, err)
	h.block = block

	t.Cleanup(func() {
		_ = h.space.Unload()
		require.NoError(t, h.module.Exit())
		require.Equal(t, h.assertionsAtStart, memutils.FailedAssertions(), "assertions failed during the test")
	})

	return h
}

func (h *harness) address(page thrashing.PageIndex) uint64 {
	return h.block.PageAddress(page)
}

func (h *harness) locked(f func()) {
	h.space.RLock()
	h.block.Lock()
	defer h.space.RUnlock()
	defer h.block.Unlock()

	f()
}

func (h *harness) migrateEvent(page thrashing.PageIndex, event thrashing.MigrationEvent) error {
	if h.residency != nil && event.Destination.IsValid() {
		h.residency.MakeResident(h.block, page, event.Destination)
	}

	var err error
	h.locked(func() {
		err = h.space.OnMigration(h.block, event)
	})
	return err
}

// migrate reports a fault-driven move of the page to dest
func (h *harness) migrate(page thrashing.PageIndex, dest processor.ID) {
	err := h.migrateEvent(page, thrashing.MigrationEvent{
		Address:     h.address(page),
		Length:      testPageSize,
		Destination: dest,
		Cause:       thrashing.CauseReplayableFault,
		Mode:        thrashing.TransferModeMove,
	})
	require.NoError(h.t, err)
}

func (h *harness) revoke(page thrashing.PageIndex, id processor.ID) {
	var err error
	h.locked(func() {
		err = h.space.OnRevocation(h.block, thrashing.RevocationEvent{
			Address:   h.address(page),
			Length:    testPageSize,
			Processor: id,
		})
	})
	require.NoError(h.t, err)
}

func (h *harness) hint(page thrashing.PageIndex, requester processor.ID) thrashing.Hint {
	var hint thrashing.Hint
	var err error
	h.locked(func() {
		hint, err = h.space.GetHint(h.block, h.address(page), requester)
	})
	require.NoError(h.t, err)
	return hint
}

func (h *harness) pageState(page thrashing.PageIndex) (thrashing.PageState, bool) {
	var state thrashing.PageState
	var ok bool
	h.locked(func() {
		state, ok = h.block.PageState(page)
	})
	return state, ok
}

func (h *harness) blockState() (thrashing.BlockState, bool) {
	var state thrashing.BlockState
	var ok bool
	h.locked(func() {
		state, ok = h.block.ThrashingState()
	})
	return state, ok
}

func (h *harness) isThrashing(page thrashing.PageIndex) bool {
	state, ok := h.blockState()
	return ok && state.ThrashingPages.Test(page)
}

func (h *harness) validate() {
	h.space.Lock()
	err := h.space.Validate()
	h.space.Unlock()
	require.NoError(h.t, err)
}

// thrash migrates the page back and forth between the given processors, gap apart, until it is
// detected as thrashing. It returns the processor the page was last migrated to.
func (h *harness) thrash(page thrashing.PageIndex, gap time.Duration, ids ...processor.ID) processor.ID {
	for i := 0; i < 32; i++ {
		if i > 0 {
			h.clock.Advance(gap)
		}

		id := ids[i%len(ids)]
		h.migrate(page, id)
		if h.isThrashing(page) {
			h.validate()
			return id
		}
	}

	require.FailNow(h.t, "page never started thrashing")
	return processor.Invalid
}

func other(id processor.ID) processor.ID {
	if id == gpu0 {
		return gpu1
	}
	return gpu0
}

// pinOnCPU makes the CPU the preferred location of the block and thrashes the page between the
// CPU and gpu0 until a gpu0 fault pins it on the CPU. The pin is serviced by moving the page to
// the CPU.
func (h *harness) pinOnCPU(page thrashing.PageIndex) thrashing.Hint {
	h.residency.SetPolicy(h.block, thrashing.RangePolicy{PreferredLocation: processor.CPU})

	h.thrash(page, 100*time.Microsecond, gpu0, processor.CPU)
	h.clock.Advance(100 * time.Microsecond)

	hint := h.hint(page, gpu0)
	require.Equal(h.t, thrashing.HintPin, hint.Type)
	require.Equal(h.t, processor.CPU, hint.Pin.Residency)

	h.migrate(page, processor.CPU)
	return hint
}
