package sim_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/uvm/internal/sim"
)

func TestManualClock_FiresInOrder(t *testing.T) {
	clock := sim.NewManualClock(1000)

	var fired []string
	var firedAt []uint64
	record := func(name string) func() {
		return func() {
			fired = append(fired, name)
			firedAt = append(firedAt, clock.Now())
		}
	}

	clock.AfterFunc(30, record("c"))
	clock.AfterFunc(10, record("a"))
	clock.AfterFunc(10, record("b"))
	clock.AfterFunc(100, record("late"))
	require.Equal(t, 4, clock.Pending())

	deadline, ok := clock.NextDeadline()
	require.True(t, ok)
	require.Equal(t, uint64(1010), deadline)

	clock.Advance(50)
	require.Equal(t, []string{"a", "b", "c"}, fired)
	require.Equal(t, []uint64{1010, 1010, 1030}, firedAt)
	require.Equal(t, uint64(1050), clock.Now())
	require.Equal(t, 1, clock.Pending())
}

func TestManualClock_Stop(t *testing.T) {
	clock := sim.NewManualClock(1)

	fired := 0
	timer := clock.AfterFunc(time.Millisecond, func() { fired++ })
	require.True(t, timer.Stop())
	require.False(t, timer.Stop())
	require.Zero(t, clock.Pending())

	clock.Advance(time.Second)
	require.Zero(t, fired)

	timer = clock.AfterFunc(time.Millisecond, func() { fired++ })
	clock.Advance(time.Millisecond)
	require.Equal(t, 1, fired)
	require.False(t, timer.Stop())

	_, ok := clock.NextDeadline()
	require.False(t, ok)
}

func TestManualClock_RearmWhileFiring(t *testing.T) {
	clock := sim.NewManualClock(1)

	var firedAt []uint64
	var tick func()
	tick = func() {
		firedAt = append(firedAt, clock.Now())
		if len(firedAt) < 3 {
			clock.AfterFunc(10, tick)
		}
	}
	clock.AfterFunc(10, tick)

	clock.Advance(25)
	require.Equal(t, []uint64{11, 21}, firedAt)
	require.Equal(t, 1, clock.Pending())

	clock.Advance(5)
	require.Equal(t, []uint64{11, 21, 31}, firedAt)
	require.Zero(t, clock.Pending())
}

func TestManualClock_NegativeDelay(t *testing.T) {
	clock := sim.NewManualClock(1)

	fired := false
	clock.AfterFunc(-time.Second, func() { fired = true })

	clock.Advance(0)
	require.True(t, fired)
}
