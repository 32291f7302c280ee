package thrashing

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/uvm/memutils"
	"golang.org/x/exp/slog"
	"sigs.k8s.io/yaml"
)

const (
	// thrashingEventsBits is the width of the per-page thrashing event counter
	thrashingEventsBits = 3
	// throttleCountBits is the width of the per-page throttle window counter
	throttleCountBits = 8

	MaxThreshold    uint = 1<<thrashingEventsBits - 1
	MaxPinThreshold uint = 1<<throttleCountBits - 1
	MaxNap          uint = 100
	MaxResets       uint = 255

	DefaultEnable       uint = 1
	DefaultThreshold    uint = 3
	DefaultPinThreshold uint = 10
	DefaultLapseUsec    uint = 500
	DefaultNap          uint = 1
	DefaultEpoch        uint = 2000
	DefaultPin          uint = 300
	DefaultMaxResets    uint = 4

	// defaultLapseUsecEmulation replaces the default lapse when simulated devices are present
	defaultLapseUsecEmulation uint = DefaultLapseUsec * 800
	// defaultPinEmulation replaces the default pin multiplier when simulated devices are present
	defaultPinEmulation uint = 10
)

const maxUint = ^uint(0)

// Tunables is the module-level configuration table. It is read once at Init and every Space
// derives its own Params from it.
type Tunables struct {
	// Enable toggles thrashing detection for the whole module (0 or 1)
	Enable uint `json:"enable"`
	// Threshold is the number of consecutive events within Lapse that mark a page as thrashing
	Threshold uint `json:"threshold"`
	// PinThreshold is the number of throttle windows a page goes through before it is pinned
	PinThreshold uint `json:"pin_threshold"`
	// LapseUsec is the maximum time between two events on a page for them to count as thrashing
	LapseUsec uint `json:"lapse_usec"`
	// Nap is the throttle window length, as a multiple of the lapse
	Nap uint `json:"nap"`
	// Epoch is how long a block must go without thrashing before its history is wiped, as a
	// multiple of the lapse
	Epoch uint `json:"epoch"`
	// Pin is how long pages stay pinned before being unpinned, as a multiple of the lapse. 0 pins
	// pages until the block is torn down.
	Pin uint `json:"pin"`
	// MaxResets is the number of times a block history can be wiped after an epoch
	MaxResets uint `json:"max_resets"`
	// MapRemoteOnNativeAtomicsFault is reported through Space.GetPolicy for the fault handler (0 or 1)
	MapRemoteOnNativeAtomicsFault uint `json:"map_remote_on_native_atomics_fault"`
}

// DefaultTunables returns the documented default value of every tunable
func DefaultTunables() Tunables {
	return Tunables{
		Enable:       DefaultEnable,
		Threshold:    DefaultThreshold,
		PinThreshold: DefaultPinThreshold,
		LapseUsec:    DefaultLapseUsec,
		Nap:          DefaultNap,
		Epoch:        DefaultEpoch,
		Pin:          DefaultPin,
		MaxResets:    DefaultMaxResets,
	}
}

// LoadTunables parses a YAML or JSON document of tunables. Fields missing from the document keep
// their default values. The result is not normalized.
func LoadTunables(data []byte) (Tunables, error) {
	tunables := DefaultTunables()
	if err := yaml.UnmarshalStrict(data, &tunables); err != nil {
		return Tunables{}, errors.Wrap(err, "failed to parse thrashing tunables")
	}
	return tunables, nil
}

type tunableRange struct {
	name     string
	value    *uint
	fallback uint
	min      uint
	max      uint
}

// Normalize returns a copy of the tunables in which every out-of-range value is replaced by its
// default. Each replacement is logged at Info level.
func (t Tunables) Normalize(logger *slog.Logger) Tunables {
	ranges := []tunableRange{
		{"enable", &t.Enable, DefaultEnable, 0, 1},
		{"threshold", &t.Threshold, DefaultThreshold, 1, MaxThreshold},
		{"pin_threshold", &t.PinThreshold, DefaultPinThreshold, 1, MaxPinThreshold},
		{"lapse_usec", &t.LapseUsec, DefaultLapseUsec, 1, maxUint},
		{"nap", &t.Nap, DefaultNap, 1, MaxNap},
		{"epoch", &t.Epoch, DefaultEpoch, 1, maxUint},
		{"pin", &t.Pin, DefaultPin, 0, maxUint},
		{"max_resets", &t.MaxResets, DefaultMaxResets, 0, MaxResets},
		{"map_remote_on_native_atomics_fault", &t.MapRemoteOnNativeAtomicsFault, 0, 0, 1},
	}

	for _, r := range ranges {
		if err := memutils.CheckRange(*r.value, r.min, r.max, r.name); err != nil {
			if logger != nil {
				logger.Info("invalid thrashing tunable, using default",
					slog.String("name", r.name),
					slog.Uint64("value", uint64(*r.value)),
					slog.Uint64("default", uint64(r.fallback)))
			}
			*r.value = r.fallback
		}
	}

	return t
}
