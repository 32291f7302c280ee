package sim

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/uvm/processor"
	"github.com/vkngwrapper/uvm/thrashing"
	"golang.org/x/exp/slog"
)

// Scenario is an access pattern the simulator can replay
type Scenario string

const (
	// ScenarioPinPreferred has the CPU and every GPU fault on pages whose preferred location is
	// the CPU
	ScenarioPinPreferred Scenario = "pin-preferred"
	// ScenarioThrottleAlternate has the GPUs take turns faulting on pages without any policy, so
	// the engine has to throttle them before it pins
	ScenarioThrottleAlternate Scenario = "throttle-alternate"
	// ScenarioRevocation has every processor run atomics on pages preferring the CPU, so each
	// access revokes the permissions of the previous processor
	ScenarioRevocation Scenario = "revocation"
)

// Scenarios lists every scenario the simulator can replay
var Scenarios = []Scenario{ScenarioPinPreferred, ScenarioThrottleAlternate, ScenarioRevocation}

// ParseScenario returns the scenario with the given name
func ParseScenario(name string) (Scenario, error) {
	for _, scenario := range Scenarios {
		if string(scenario) == name {
			return scenario, nil
		}
	}
	return "", errors.Newf("unknown scenario %q", name)
}

func (s *Simulator) rotation(scenario Scenario) ([]processor.ID, error) {
	switch scenario {
	case ScenarioPinPreferred, ScenarioRevocation:
		return append([]processor.ID{processor.CPU}, s.gpus...), nil
	case ScenarioThrottleAlternate:
		if len(s.gpus) < 2 {
			return nil, errors.Newf("scenario %s needs at least two GPUs", scenario)
		}
		return s.gpus, nil
	default:
		return nil, errors.Newf("unknown scenario %q", scenario)
	}
}

// Run replays the scenario for the given number of rounds. In each round every processor of the
// scenario faults once on every page, and the clock moves between faults.
func (s *Simulator) Run(scenario Scenario, rounds int) error {
	processors, err := s.rotation(scenario)
	if err != nil {
		return err
	}

	policy := DefaultPolicy()
	if scenario != ScenarioThrottleAlternate {
		policy.PreferredLocation = processor.CPU
	}
	s.Residency.SetPolicy(s.Block, policy)

	for round := 0; round < rounds; round++ {
		for _, id := range processors {
			for page := thrashing.PageIndex(0); int(page) < s.Block.PageCount(); page++ {
				if scenario == ScenarioRevocation {
					if err := s.Revoke(page, id); err != nil {
						return err
					}
				} else if s.Residency.ResidentProcessors(s.Block, page).Test(id) {
					// Local accesses do not fault
					continue
				}

				if _, err := s.Fault(page, id); err != nil {
					return err
				}
			}
			s.Step()
		}
	}

	s.logger.Debug("Simulator::Run",
		slog.String("scenario", string(scenario)),
		slog.Int("rounds", rounds),
		slog.Int("pinned", s.Space.PinnedPageCount()))

	return s.Validate()
}
