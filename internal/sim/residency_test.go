package sim_test

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/uvm/internal/sim"
	"github.com/vkngwrapper/uvm/processor"
	"github.com/vkngwrapper/uvm/thrashing"
	"golang.org/x/exp/slog"
)

func newBlock(t *testing.T, residency thrashing.Residency, topology *processor.Topology) *thrashing.Block {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	module, err := thrashing.Init(logger, thrashing.DefaultTunables(), thrashing.ModuleOptions{
		Clock: sim.NewManualClock(1),
	})
	require.NoError(t, err)

	space, err := module.NewSpace(logger, thrashing.SpaceOptions{
		Residency: residency,
		Topology:  topology,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, space.Unload())
		require.NoError(t, module.Exit())
	})

	block, err := space.CreateBlock(0, 8)
	require.NoError(t, err)
	return block
}

func TestResidency_MakeResident(t *testing.T) {
	gpu0 := processor.GPU(0)
	gpu1 := processor.GPU(1)

	topology := processor.NewTopology(nil)
	require.NoError(t, topology.RegisterProcessor(gpu0, true))
	require.NoError(t, topology.RegisterProcessor(gpu1, true))
	require.NoError(t, topology.SetFastLink(gpu0, gpu1, true))

	residency := sim.NewResidency(topology)
	block := newBlock(t, residency, topology)

	require.Equal(t, sim.DefaultPolicy(), residency.Policy(block, 0))
	require.Equal(t, processor.Invalid, residency.ClosestResident(block, 0, gpu0))

	residency.MakeResident(block, 0, gpu1)
	residency.MakeResident(block, 1, gpu1)
	require.Equal(t, processor.MaskOf(gpu1), residency.ResidentProcessors(block, 0))
	require.Equal(t, thrashing.PageMaskOf(0, 1), residency.ResidentPages(block, gpu1))
	require.Equal(t, gpu1, residency.ClosestResident(block, 0, gpu0))

	residency.MakeResident(block, 0, processor.CPU)
	require.Equal(t, processor.MaskOf(processor.CPU), residency.ResidentProcessors(block, 0))
	require.Equal(t, thrashing.PageMaskOf(1), residency.ResidentPages(block, gpu1))
	require.Equal(t, processor.CPU, residency.ClosestResident(block, 0, processor.CPU))

	// Moving a page away leaves the mapping behind
	require.Equal(t, processor.MaskOf(processor.CPU, gpu1), residency.MappedProcessors(block))

	residency.Map(block, gpu0)
	require.Equal(t, processor.MaskOf(processor.CPU, gpu0, gpu1), residency.MappedProcessors(block))
}

func TestResidency_Unmap(t *testing.T) {
	topology := processor.NewTopology(nil)
	residency := sim.NewResidency(topology)
	block := newBlock(t, residency, topology)

	policy := thrashing.RangePolicy{PreferredLocation: processor.CPU, AccessedBy: processor.MaskOf(processor.GPU(2))}
	residency.SetPolicy(block, policy)
	require.Equal(t, policy, residency.Policy(block, 5))

	region := thrashing.Region{First: 2, Outer: 4}
	require.NoError(t, residency.Unmap(block, processor.CPU, region, thrashing.PageMaskOf(3)))

	failure := errors.New("unmap failed")
	residency.SetUnmapError(failure)
	require.ErrorIs(t, residency.Unmap(block, processor.CPU, region, thrashing.PageMaskOf(2)), failure)

	residency.SetUnmapError(nil)
	require.NoError(t, residency.Unmap(block, processor.CPU, region, thrashing.PageMaskOf(2)))

	unmaps := residency.Unmaps()
	require.Len(t, unmaps, 3)
	require.Equal(t, sim.UnmapCall{
		Block:     block,
		Processor: processor.CPU,
		Region:    region,
		Pages:     thrashing.PageMaskOf(3),
	}, unmaps[0])
}
