package thrashing_test

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/uvm/thrashing"
)

type pageDump struct {
	Index           int
	Events          int
	Processors      string
	Pinned          bool
	PinnedResidency string
}

type blockDump struct {
	PageCount      int
	Tracked        bool
	PageRecords    bool
	ThrashingPages string
	PinnedPages    string
	ThrashingCount int
	PinnedCount    int
	Pages          []pageDump
}

type spaceDump struct {
	ID       string
	PageSize int
	Flags    string
	Params   struct {
		Enabled       bool
		Threshold     int
		PinNs         int64
		TestOverrides bool
	}
	PinnedPages int
	BlockCount  int
	Blocks      map[string]blockDump
}

func parseSpaceDump(t *testing.T, document string) spaceDump {
	require.True(t, json.Valid([]byte(document)), document)

	var dump spaceDump
	require.NoError(t, json.Unmarshal([]byte(document), &dump))
	return dump
}

func TestSpace_BuildStatsString(t *testing.T) {
	h := newHarness(t, HarnessSetup{})
	h.pinOnCPU(0)

	dump := parseSpaceDump(t, h.space.BuildStatsString(false))
	require.Equal(t, h.space.ID().String(), dump.ID)
	require.Equal(t, int(testPageSize), dump.PageSize)
	require.True(t, dump.Params.Enabled)
	require.Equal(t, int(thrashing.DefaultThreshold), dump.Params.Threshold)
	require.Equal(t, int64(h.space.Params().PinDuration), dump.Params.PinNs)
	require.Equal(t, 1, dump.PinnedPages)
	require.Equal(t, 1, dump.BlockCount)
	require.Nil(t, dump.Blocks)
}

func TestSpace_BuildStatsStringDetailed(t *testing.T) {
	h := newHarness(t, HarnessSetup{})
	h.pinOnCPU(0)

	// An untracked block is still listed
	_, err := h.space.CreateBlock(0x400000, 4)
	require.NoError(t, err)

	dump := parseSpaceDump(t, h.space.BuildStatsString(true))
	require.Len(t, dump.Blocks, 2)

	block, ok := dump.Blocks[strconv.FormatUint(testBlockStart, 16)]
	require.True(t, ok)
	require.True(t, block.Tracked)
	require.True(t, block.PageRecords)
	require.Equal(t, testBlockPages, block.PageCount)
	require.Equal(t, 1, block.ThrashingCount)
	require.Equal(t, 1, block.PinnedCount)
	require.Equal(t, thrashing.PageMaskOf(0).String(), block.PinnedPages)

	require.Len(t, block.Pages, 1)
	require.Equal(t, 0, block.Pages[0].Index)
	require.True(t, block.Pages[0].Pinned)
	require.Equal(t, "CPU", block.Pages[0].PinnedResidency)

	untracked, ok := dump.Blocks["400000"]
	require.True(t, ok)
	require.False(t, untracked.Tracked)
	require.Equal(t, 4, untracked.PageCount)
	require.Empty(t, untracked.Pages)
}

func TestSpace_BuildStatsStringFlags(t *testing.T) {
	h := newHarness(t, HarnessSetup{Flags: thrashing.SpaceCreateExternallySynchronized})

	dump := parseSpaceDump(t, h.space.BuildStatsString(true))
	require.Equal(t, "SpaceCreateExternallySynchronized", dump.Flags)
	require.Zero(t, dump.PinnedPages)
}
