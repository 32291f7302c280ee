package memutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/uvm/memutils"
)

func TestSaturatingInc(t *testing.T) {
	testCases := map[string]struct {
		Max        uint8
		Increments int
		Expected   uint8
	}{
		"BelowMax": {
			Max:        7,
			Increments: 3,
			Expected:   3,
		},
		"ExactlyMax": {
			Max:        7,
			Increments: 7,
			Expected:   7,
		},
		"PastMax": {
			Max:        7,
			Increments: 100,
			Expected:   7,
		},
		"FullWidth": {
			Max:        255,
			Increments: 1000,
			Expected:   255,
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			var value uint8
			for i := 0; i < testCase.Increments; i++ {
				value = memutils.SaturatingInc(value, testCase.Max)
			}
			require.Equal(t, testCase.Expected, value)
		})
	}
}

func TestMaxValue(t *testing.T) {
	require.Equal(t, uint8(7), memutils.MaxValue[uint8](3))
	require.Equal(t, uint8(255), memutils.MaxValue[uint8](8))
	require.Equal(t, uint32(0xffff), memutils.MaxValue[uint32](16))
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(uint64(4096), "PageSize"))
	require.NoError(t, memutils.CheckPow2(1, "One"))

	err := memutils.CheckPow2(uint64(3000), "PageSize")
	require.ErrorIs(t, err, memutils.PowerOfTwoError)
	require.ErrorContains(t, err, "PageSize is 3000")

	require.ErrorIs(t, memutils.CheckPow2(0, "Zero"), memutils.PowerOfTwoError)
}

func TestCheckRange(t *testing.T) {
	require.NoError(t, memutils.CheckRange(uint(1), 1, 7, "threshold"))
	require.NoError(t, memutils.CheckRange(uint(7), 1, 7, "threshold"))

	err := memutils.CheckRange(uint(8), 1, 7, "threshold")
	require.ErrorIs(t, err, memutils.OutOfRangeError)
	require.ErrorContains(t, err, "threshold is 8")

	require.ErrorIs(t, memutils.CheckRange(0, 1, 7, "threshold"), memutils.OutOfRangeError)
}

func TestAlign(t *testing.T) {
	require.Equal(t, uint64(8192), memutils.AlignUp(4097, 4096))
	require.Equal(t, uint64(4096), memutils.AlignUp(4096, 4096))
	require.Equal(t, uint64(4096), memutils.AlignDown(8191, 4096))
	require.Equal(t, uint64(0), memutils.AlignDown(4095, 4096))
}
