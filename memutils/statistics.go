package memutils

import "github.com/launchdarkly/go-jsonstream/v3/jwriter"

// Statistics is a snapshot of the thrashing mitigation counters kept for a single processor
type Statistics struct {
	// Thrashing is the number of times a page was detected as thrashing while this processor
	// was the one triggering the event
	Thrashing uint64
	// Throttle is the number of throttle hints returned to this processor
	Throttle uint64
	// PinLocal is the number of pin hints that pinned a page on this processor
	PinLocal uint64
	// PinRemote is the number of pin hints that pinned a page on a different processor and
	// mapped this one remotely
	PinRemote uint64
}

func (s *Statistics) Clear() {
	s.Thrashing = 0
	s.Throttle = 0
	s.PinLocal = 0
	s.PinRemote = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.Thrashing += other.Thrashing
	s.Throttle += other.Throttle
	s.PinLocal += other.PinLocal
	s.PinRemote += other.PinRemote
}

// Pins returns the total number of pin hints, local and remote
func (s *Statistics) Pins() uint64 {
	return s.PinLocal + s.PinRemote
}

func (s *Statistics) PrintJson(json jwriter.ObjectState) {
	json.Name("Thrashing").Int(int(s.Thrashing))
	json.Name("Throttle").Int(int(s.Throttle))
	json.Name("PinLocal").Int(int(s.PinLocal))
	json.Name("PinRemote").Int(int(s.PinRemote))
}
