package thrashing_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/uvm/thrashing"
)

func TestRegion(t *testing.T) {
	testCases := map[string]struct {
		Region thrashing.Region

		ExpectEmpty bool
		ExpectPages int
	}{
		"SinglePage": {
			Region:      thrashing.RegionForPage(7),
			ExpectPages: 1,
		},
		"Range": {
			Region:      thrashing.Region{First: 60, Outer: 70},
			ExpectPages: 10,
		},
		"Empty": {
			Region:      thrashing.Region{First: 3, Outer: 3},
			ExpectEmpty: true,
		},
		"Reversed": {
			Region:      thrashing.Region{First: 5, Outer: 2},
			ExpectEmpty: true,
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			require.Equal(t, testCase.ExpectEmpty, testCase.Region.Empty())
			require.Equal(t, testCase.ExpectPages, testCase.Region.Pages())
			require.Equal(t, testCase.ExpectPages, thrashing.RegionMask(testCase.Region).Count())
			require.Equal(t, !testCase.ExpectEmpty, testCase.Region.Contains(testCase.Region.First))
			require.False(t, testCase.Region.Contains(testCase.Region.Outer))
		})
	}
}

func TestPageMask_SetOperations(t *testing.T) {
	a := thrashing.PageMaskOf(0, 63, 64, 511)
	b := thrashing.PageMaskOf(63, 200)

	require.Equal(t, 4, a.Count())
	require.Equal(t, thrashing.PageMaskOf(63), a.And(b))
	require.Equal(t, thrashing.PageMaskOf(0, 63, 64, 200, 511), a.Or(b))
	require.Equal(t, thrashing.PageMaskOf(0, 64, 511), a.AndNot(b))
	require.Equal(t, 4, a.Count())

	require.True(t, thrashing.PageMaskOf(64, 511).Subset(a))
	require.False(t, b.Subset(a))
	require.True(t, thrashing.PageMask{}.Subset(b))

	require.True(t, thrashing.RegionMask(thrashing.Region{First: 60, Outer: 70}).RegionFull(thrashing.Region{First: 63, Outer: 65}))
	require.True(t, a.RegionFull(thrashing.Region{First: 63, Outer: 65}))
	require.False(t, a.RegionFull(thrashing.Region{First: 62, Outer: 65}))
	require.False(t, a.RegionFull(thrashing.Region{}))
}

func TestPageMask_TestAndSet(t *testing.T) {
	var m thrashing.PageMask

	require.False(t, m.TestAndSet(130))
	require.True(t, m.TestAndSet(130))
	require.True(t, m.TestAndClear(130))
	require.False(t, m.TestAndClear(130))
	require.True(t, m.Empty())

	// Pages past the end of a block are never members
	m.Set(thrashing.MaxPagesPerBlock)
	require.True(t, m.Empty())
	require.False(t, m.Test(thrashing.MaxPagesPerBlock))

	m = thrashing.PageMaskOf(1, 2)
	m.Zero()
	require.True(t, m.Empty())
}

func TestPageMask_Iteration(t *testing.T) {
	m := thrashing.PageMaskOf(300, 2, 64, 63)

	var pages []thrashing.PageIndex
	m.ForEach(func(page thrashing.PageIndex) bool {
		pages = append(pages, page)
		return true
	})
	require.Equal(t, []thrashing.PageIndex{2, 63, 64, 300}, pages)

	pages = nil
	m.ForEach(func(page thrashing.PageIndex) bool {
		pages = append(pages, page)
		return len(pages) < 2
	})
	require.Equal(t, []thrashing.PageIndex{2, 63}, pages)

	pages = nil
	m.ForEachInRegion(thrashing.Region{First: 60, Outer: 300}, func(page thrashing.PageIndex) bool {
		pages = append(pages, page)
		return true
	})
	require.Equal(t, []thrashing.PageIndex{63, 64}, pages)

	require.Equal(t, "[2,63,64,300]", m.String())
	require.Equal(t, "[]", thrashing.PageMask{}.String())
}
