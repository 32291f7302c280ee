package thrashing

import "time"

// Timer is a pending call scheduled through Clock.AfterFunc
type Timer interface {
	// Stop prevents the call from running. It returns false if the call already ran or was stopped.
	Stop() bool
}

// Clock is the monotonic time source of the engine. Timestamps are nanoseconds from an arbitrary
// origin and are never zero, because zero marks a record that has never seen an event.
type Clock interface {
	Now() uint64
	AfterFunc(d time.Duration, f func()) Timer
}

// clockOrigin keeps system timestamps away from zero
const clockOrigin = time.Second

type systemClock struct {
	start time.Time
}

// SystemClock returns a Clock backed by the monotonic reading of the time package
func SystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Now() uint64 {
	return uint64(time.Since(c.start) + clockOrigin)
}

func (c *systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// timestampShift is the resolution of stored page timestamps: 64ns
const timestampShift = 6

func truncateTimestamp(ts uint64) uint64 {
	return ts >> timestampShift << timestampShift
}
