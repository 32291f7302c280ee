package thrashing

import (
	"math"
	"math/bits"
	"time"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Params is the configuration snapshot of a single Space. It is derived from the module Tunables
// when the space is loaded and can only change through Space.RegisterGPU or Space.SetPolicy.
type Params struct {
	Enabled bool

	Threshold    uint8
	PinThreshold uint8

	Lapse       time.Duration
	Nap         time.Duration
	Epoch       time.Duration
	PinDuration time.Duration

	MaxResets uint8

	// TestOverrides is set once the policy has been changed through Space.SetPolicy. From then on
	// the parameters are no longer re-derived from the module tunables.
	TestOverrides bool
}

// scaleDuration returns unit*factor, saturating at the largest representable duration
func scaleDuration(unit time.Duration, factor uint) time.Duration {
	hi, lo := bits.Mul64(uint64(unit), uint64(factor))
	if hi != 0 || lo > math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(lo)
}

func deriveParams(tunables Tunables, simulatedDevices int) Params {
	lapse := scaleDuration(time.Microsecond, tunables.LapseUsec)
	if simulatedDevices > 0 && tunables.LapseUsec == DefaultLapseUsec {
		lapse = scaleDuration(time.Microsecond, defaultLapseUsecEmulation)
	}

	pin := scaleDuration(lapse, tunables.Pin)
	if simulatedDevices > 0 && tunables.Pin == DefaultPin {
		pin = scaleDuration(lapse, defaultPinEmulation)
	}

	return Params{
		Enabled:      tunables.Enable != 0,
		Threshold:    uint8(tunables.Threshold),
		PinThreshold: uint8(tunables.PinThreshold),
		Lapse:        lapse,
		Nap:          scaleDuration(lapse, tunables.Nap),
		Epoch:        scaleDuration(lapse, tunables.Epoch),
		PinDuration:  pin,
		MaxResets:    uint8(tunables.MaxResets),
	}
}

func (p *Params) printJson(json jwriter.ObjectState) {
	json.Name("Enabled").Bool(p.Enabled)
	json.Name("Threshold").Int(int(p.Threshold))
	json.Name("PinThreshold").Int(int(p.PinThreshold))
	json.Name("LapseNs").Int(int(p.Lapse))
	json.Name("NapNs").Int(int(p.Nap))
	json.Name("EpochNs").Int(int(p.Epoch))
	json.Name("PinNs").Int(int(p.PinDuration))
	json.Name("MaxResets").Int(int(p.MaxResets))
	json.Name("TestOverrides").Bool(p.TestOverrides)
}
