package processor

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// DistanceFunc ranks how far the memory of processor to is from processor from. Smaller values are
// closer. Ties are broken by the lower processor id.
type DistanceFunc func(topology *Topology, from, to ID) int

// DefaultDistance ranks a processor closest to itself, then peers with a fast link, then peers it
// can access, then everything else.
func DefaultDistance(topology *Topology, from, to ID) int {
	switch {
	case from == to:
		return 0
	case topology.HasFastLink(from, to):
		return 1
	case topology.CanAccess(from, to):
		return 2
	default:
		return 3
	}
}

// Topology holds the accessibility relationships between the processors of an address space. It
// is read on every hint and written only when processors are registered, so lookups are guarded
// by a read lock.
type Topology struct {
	mutex sync.RWMutex

	registered Mask
	hasMemory  Mask

	// canAccess[a] is the set of processors whose memory a can access
	canAccess [MaxProcessors]Mask
	// accessibleFrom[b] is the set of processors that can access the memory of b
	accessibleFrom [MaxProcessors]Mask
	fastLink       [MaxProcessors]Mask
	nativeAtomics  [MaxProcessors]Mask

	distance DistanceFunc
}

// NewTopology creates a topology containing only the CPU. If distance is nil, DefaultDistance is used.
func NewTopology(distance DistanceFunc) *Topology {
	if distance == nil {
		distance = DefaultDistance
	}

	t := &Topology{distance: distance}
	t.registerLocked(CPU, true)
	return t
}

// RegisterProcessor adds a processor to the topology. hasMemory indicates whether the processor
// has memory of its own that pages can be made resident on.
func (t *Topology) RegisterProcessor(id ID, hasMemory bool) error {
	if !id.IsValid() {
		return errors.Newf("cannot register invalid processor id %d", id)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.registered.Test(id) {
		return errors.Newf("processor %s is already registered", id)
	}

	t.registerLocked(id, hasMemory)
	return nil
}

func (t *Topology) registerLocked(id ID, hasMemory bool) {
	t.registered.Set(id)
	if hasMemory {
		t.hasMemory.Set(id)
	}

	t.canAccess[id].Set(id)
	t.accessibleFrom[id].Set(id)
}

// UnregisterProcessor removes a GPU and every relationship that involves it
func (t *Topology) UnregisterProcessor(id ID) error {
	if !id.IsGPU() {
		return errors.Newf("cannot unregister processor %s", id)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.registered.Test(id) {
		return errors.Newf("processor %s is not registered", id)
	}

	t.registered.Clear(id)
	t.hasMemory.Clear(id)
	for i := 0; i < MaxProcessors; i++ {
		t.canAccess[i].Clear(id)
		t.accessibleFrom[i].Clear(id)
		t.fastLink[i].Clear(id)
		t.nativeAtomics[i].Clear(id)
	}
	t.canAccess[id].Zero()
	t.accessibleFrom[id].Zero()
	t.fastLink[id].Zero()
	t.nativeAtomics[id].Zero()

	return nil
}

// SetAccess records that processor from can map the memory of processor to
func (t *Topology) SetAccess(from, to ID) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.registered.Test(from) || !t.registered.Test(to) {
		return errors.Newf("cannot set access from %s to %s: both processors must be registered", from, to)
	}

	t.canAccess[from].Set(to)
	t.accessibleFrom[to].Set(from)
	return nil
}

// SetFastLink records a symmetric fast interconnect between a and b. A fast link implies mutual
// access. nativeAtomics indicates whether atomics are supported natively over the link.
func (t *Topology) SetFastLink(a, b ID, nativeAtomics bool) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.registered.Test(a) || !t.registered.Test(b) {
		return errors.Newf("cannot link %s and %s: both processors must be registered", a, b)
	}

	t.canAccess[a].Set(b)
	t.canAccess[b].Set(a)
	t.accessibleFrom[a].Set(b)
	t.accessibleFrom[b].Set(a)
	t.fastLink[a].Set(b)
	t.fastLink[b].Set(a)
	if nativeAtomics {
		t.nativeAtomics[a].Set(b)
		t.nativeAtomics[b].Set(a)
	}
	return nil
}

func (t *Topology) Registered() Mask {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.registered
}

func (t *Topology) HasMemory(id ID) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.hasMemory.Test(id)
}

func (t *Topology) CanAccess(from, to ID) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}

	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.canAccess[from].Test(to)
}

func (t *Topology) HasFastLink(a, b ID) bool {
	if !a.IsValid() || !b.IsValid() {
		return false
	}

	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.fastLink[a].Test(b)
}

// CanAccessMask returns the processors whose memory from can access
func (t *Topology) CanAccessMask(from ID) Mask {
	if !from.IsValid() {
		return Mask{}
	}

	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.canAccess[from]
}

// AccessibleFrom returns the processors that can access the memory of to
func (t *Topology) AccessibleFrom(to ID) Mask {
	if !to.IsValid() {
		return Mask{}
	}

	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.accessibleFrom[to]
}

// FastAccessMask returns the processors that reach the memory of to over a fast link with native
// atomics, plus to itself
func (t *Topology) FastAccessMask(to ID) Mask {
	if !to.IsValid() {
		return Mask{}
	}

	t.mutex.RLock()
	defer t.mutex.RUnlock()

	fast := t.fastLink[to].And(t.nativeAtomics[to])
	fast.Set(to)
	return fast
}

// FindClosest returns the member of candidates closest to processor to, or Invalid if candidates
// is empty
func (t *Topology) FindClosest(candidates Mask, to ID) ID {
	closest := Invalid
	closestDistance := 0

	candidates.ForEach(func(id ID) bool {
		distance := t.distance(t, to, id)
		if closest == Invalid || distance < closestDistance {
			closest = id
			closestDistance = distance
		}
		return true
	})

	return closest
}
