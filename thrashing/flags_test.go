package thrashing_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/uvm/thrashing"
)

func TestFlagStrings(t *testing.T) {
	testCases := map[string]struct {
		Value fmt.Stringer

		ExpectString string
	}{
		"ExternallySynchronized": {
			Value:        thrashing.SpaceCreateExternallySynchronized,
			ExpectString: "SpaceCreateExternallySynchronized",
		},
		"HintThrottle": {
			Value:        thrashing.HintThrottle,
			ExpectString: "Throttle",
		},
		"PinDescriptor": {
			Value:        thrashing.AllocationPinDescriptor,
			ExpectString: "AllocationPinDescriptor",
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			require.Equal(t, testCase.ExpectString, testCase.Value.String())
		})
	}
}
