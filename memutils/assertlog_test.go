//go:build !debug_mem_utils

package memutils_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/uvm/memutils"
	"golang.org/x/exp/slog"
)

func TestAssert_LogsInProduction(t *testing.T) {
	var buf bytes.Buffer
	memutils.SetAssertionLogger(slog.New(slog.NewJSONHandler(&buf)), 1, 1)
	defer memutils.SetAssertionLogger(nil, 0, 0)

	before := memutils.FailedAssertions()

	memutils.Assert(true, "never logged")
	require.Equal(t, before, memutils.FailedAssertions())
	require.Zero(t, buf.Len())

	memutils.Assert(false, "page %d", 12)
	memutils.Assert(false, "page %d", 13)

	require.Equal(t, before+2, memutils.FailedAssertions())
	require.Contains(t, buf.String(), "page 12")
	// The second failure is beyond the burst and is dropped
	require.NotContains(t, buf.String(), "page 13")
}
