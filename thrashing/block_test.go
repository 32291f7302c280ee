package thrashing_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/uvm/thrashing"
)

func TestBlock_RegionFromRange(t *testing.T) {
	testCases := map[string]struct {
		Address uint64
		Length  uint64

		ExpectRegion thrashing.Region
	}{
		"SinglePage": {
			Address:      testBlockStart,
			Length:       testPageSize,
			ExpectRegion: thrashing.Region{First: 0, Outer: 1},
		},
		"Unaligned": {
			Address:      testBlockStart + testPageSize/2,
			Length:       testPageSize,
			ExpectRegion: thrashing.Region{First: 0, Outer: 2},
		},
		"SingleByte": {
			Address:      testBlockStart + 3*testPageSize + 1,
			Length:       1,
			ExpectRegion: thrashing.Region{First: 3, Outer: 4},
		},
		"WholeBlock": {
			Address:      testBlockStart,
			Length:       uint64(testBlockPages) * testPageSize,
			ExpectRegion: thrashing.Region{First: 0, Outer: thrashing.PageIndex(testBlockPages)},
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			h := newHarness(t, HarnessSetup{})

			region, err := h.block.RegionFromRange(testCase.Address, testCase.Length)
			require.NoError(t, err)
			require.Equal(t, testCase.ExpectRegion, region)
		})
	}
}

func TestBlock_RegionFromRange_Errors(t *testing.T) {
	testCases := map[string]struct {
		Address uint64
		Length  uint64
	}{
		"Empty": {
			Address: testBlockStart,
			Length:  0,
		},
		"BeforeBlock": {
			Address: testBlockStart - testPageSize,
			Length:  testPageSize,
		},
		"PastBlock": {
			Address: testBlockStart,
			Length:  uint64(testBlockPages+1) * testPageSize,
		},
		// The end of the range wraps back into the first page of the block
		"WrapsAround": {
			Address: testBlockStart + testPageSize,
			Length:  math.MaxUint64 - testPageSize/2 + 1,
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			h := newHarness(t, HarnessSetup{})

			_, err := h.block.RegionFromRange(testCase.Address, testCase.Length)
			require.ErrorIs(t, err, thrashing.ErrInvalidArgument)
		})
	}
}
