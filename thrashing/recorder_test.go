package thrashing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/uvm/processor"
	"github.com/vkngwrapper/uvm/thrashing"
	mock_thrashing "github.com/vkngwrapper/uvm/thrashing/mocks"
	"go.uber.org/mock/gomock"
)

func TestEventRecorder_ThrottleThenPin(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := mock_thrashing.NewMockEventRecorder(ctrl)

	h := newHarness(t, HarnessSetup{
		Tunables: pinThresholdOne,
		Recorder: recorder,
	})

	// The page ends up on gpu0 after the alternating streak, so gpu1 owns the first window
	gomock.InOrder(
		recorder.EXPECT().RecordThrashing(h.space, h.address(0), testPageSize, processor.MaskOf(gpu0, gpu1)),
		recorder.EXPECT().RecordThrottlingStart(h.space, h.address(0), gpu0),
		recorder.EXPECT().RecordThrottlingEnd(h.space, h.address(0), gpu0),
	)

	require.Equal(t, gpu1, h.pinAfterThrottle(0))
}

func TestEventRecorder_CPUThrottleNotRecorded(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := mock_thrashing.NewMockEventRecorder(ctrl)

	h := newHarness(t, HarnessSetup{Recorder: recorder})

	recorder.EXPECT().RecordThrashing(h.space, h.address(0), testPageSize, processor.MaskOf(processor.CPU, gpu0))

	last := h.thrash(0, 100*time.Microsecond, processor.CPU, gpu0)
	require.Equal(t, processor.CPU, last)

	// gpu0 requests first and becomes exempt, then the CPU is throttled
	h.clock.Advance(100 * time.Microsecond)
	require.Equal(t, thrashing.HintNone, h.hint(0, gpu0).Type)
	h.migrate(0, gpu0)

	h.clock.Advance(100 * time.Microsecond)
	require.Equal(t, thrashing.HintThrottle, h.hint(0, processor.CPU).Type)

	// Once the window is over the CPU throttle ends, and neither side of it was recorded
	h.clock.Advance(h.space.Params().Nap)
	require.Equal(t, thrashing.HintNone, h.hint(0, processor.CPU).Type)

	state, ok := h.pageState(0)
	require.True(t, ok)
	require.True(t, state.ThrottledProcessors.Empty())
}

func TestEventRecorder_ThrashingAtLargestThreshold(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := mock_thrashing.NewMockEventRecorder(ctrl)

	h := newHarness(t, HarnessSetup{
		Tunables: func(tunables *thrashing.Tunables) {
			tunables.Threshold = thrashing.MaxThreshold
		},
		DebugStats: true,
		Recorder:   recorder,
	})
	require.NoError(t, h.module.AddGPU(gpu0))

	// The event counter saturates at the threshold, which must not fire again on every event
	recorder.EXPECT().RecordThrashing(h.space, h.address(0), testPageSize, gomock.Any()).Times(1)

	ids := []processor.ID{processor.CPU, gpu0}
	for i := 0; i < 20; i++ {
		h.clock.Advance(10 * time.Microsecond)
		h.migrate(0, ids[i%len(ids)])
	}

	require.True(t, h.isThrashing(0))
	require.Equal(t, uint64(1), h.module.TotalStatistics().Thrashing)
}
