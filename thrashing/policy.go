package thrashing

import (
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// PolicyState is the diagnostic view of the thrashing policy of a space
type PolicyState struct {
	Policy      Policy
	Nap         time.Duration
	PinDuration time.Duration
	// MapRemoteOnNativeAtomicsFault tells the fault handler to map pages remotely rather than
	// migrate them on faults caused by native atomics
	MapRemoteOnNativeAtomicsFault bool
}

// GetPolicy returns the current thrashing policy of the space. Nap, PinDuration, and
// MapRemoteOnNativeAtomicsFault are only filled when the policy is PolicyEnable.
func (s *Space) GetPolicy() PolicyState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	params := s.params()
	if !params.Enabled {
		return PolicyState{Policy: PolicyDisable}
	}

	return PolicyState{
		Policy:                        PolicyEnable,
		Nap:                           params.Nap,
		PinDuration:                   params.PinDuration,
		MapRemoteOnNativeAtomicsFault: s.module.tunables.MapRemoteOnNativeAtomicsFault != 0,
	}
}

// SetPolicy forces thrashing detection on or off for the space. From then on the parameters are
// never derived from the module tunables again. pinDuration replaces the pin duration when
// enabling.
//
// Disabling drops the remote mappings of pinned pages and the tracking state of every block. If
// unmapping fails for a block, detection is left enabled and the error is returned. The caller
// must not hold the space lock or any block lock.
func (s *Space) SetPolicy(policy Policy, pinDuration time.Duration) error {
	if policy < PolicyDisable || policy >= policyMax {
		return errors.Wrapf(ErrInvalidArgument, "unknown thrashing policy %d", policy)
	}

	if !s.module.Enabled() {
		return errors.Wrap(ErrInvalidState, "thrashing detection is disabled for the module")
	}

	if pinDuration < 0 {
		return errors.Wrapf(ErrInvalidArgument, "pin duration %s is negative", pinDuration)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	params := s.Params()
	params.TestOverrides = true

	if policy == PolicyEnable {
		if !params.Enabled {
			params.PinDuration = pinDuration
			params.Enabled = true
		}
		s.setParams(params)
		return nil
	}

	if !params.Enabled {
		s.setParams(params)
		return nil
	}

	params.Enabled = false
	s.setParams(params)

	for _, block := range s.snapshotBlocks() {
		block.Lock()
		err := s.UnmapRemotePinnedPagesAll(block, block.Region())
		s.destroyInfo(block)
		block.Unlock()

		// Tracking state left behind while disabled would trip the invariant checks
		if err != nil {
			params.Enabled = true
			s.setParams(params)

			s.logger.Warn("Space::SetPolicy failed to disable thrashing detection",
				slog.Uint64("block", block.start),
				slog.Any("error", err))
			return errors.Wrap(err, "failed to disable thrashing detection")
		}
	}

	s.logger.Debug("Space::SetPolicy disabled thrashing detection")
	return nil
}
