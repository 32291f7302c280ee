package sim

import (
	"sort"
	"sync"
	"time"

	"github.com/vkngwrapper/uvm/thrashing"
)

// ManualClock is a thrashing.Clock whose time only moves when Advance is called. Timers fire on
// the goroutine calling Advance, in deadline order.
type ManualClock struct {
	mutex  sync.Mutex
	now    uint64
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	deadline uint64
	seq      uint64
	f        func()
	done     bool
}

// NewManualClock creates a clock reading start. start must not be zero.
func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) thrashing.Timer {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if d < 0 {
		d = 0
	}

	c.seq++
	timer := &manualTimer{
		clock:    c,
		deadline: c.now + uint64(d),
		seq:      c.seq,
		f:        f,
	}
	c.timers = append(c.timers, timer)
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline != c.timers[j].deadline {
			return c.timers[i].deadline < c.timers[j].deadline
		}
		return c.timers[i].seq < c.timers[j].seq
	})

	return timer
}

func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if t.done {
		return false
	}

	t.done = true
	for i, timer := range c.timers {
		if timer == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			break
		}
	}
	return true
}

// Advance moves the clock forward by d, firing every timer that comes due on the way. The clock
// reads the deadline of each timer while it runs. Timers armed by a firing timer also fire if
// they come due before the end of the advance.
func (c *ManualClock) Advance(d time.Duration) {
	c.mutex.Lock()
	target := c.now + uint64(d)

	for len(c.timers) > 0 && c.timers[0].deadline <= target {
		timer := c.timers[0]
		c.timers = c.timers[1:]
		timer.done = true
		if timer.deadline > c.now {
			c.now = timer.deadline
		}

		c.mutex.Unlock()
		timer.f()
		c.mutex.Lock()
	}

	c.now = target
	c.mutex.Unlock()
}

// Pending returns the number of timers that have not fired or been stopped
func (c *ManualClock) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.timers)
}

// NextDeadline returns the deadline of the next timer to fire. It returns false if no timer is
// pending.
func (c *ManualClock) NextDeadline() (uint64, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if len(c.timers) == 0 {
		return 0, false
	}
	return c.timers[0].deadline, true
}
