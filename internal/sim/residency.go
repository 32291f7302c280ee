package sim

import (
	"sync"

	"github.com/vkngwrapper/uvm/processor"
	"github.com/vkngwrapper/uvm/thrashing"
)

// UnmapCall is a call to Residency.Unmap
type UnmapCall struct {
	Block     *thrashing.Block
	Processor processor.ID
	Region    thrashing.Region
	Pages     thrashing.PageMask
}

type blockResidency struct {
	resident map[processor.ID]thrashing.PageMask
	mapped   processor.Mask
	policy   thrashing.RangePolicy
}

// Residency is an in-memory residency engine. It tracks which processors hold a copy of each page
// and which processors map each block.
type Residency struct {
	mutex    sync.Mutex
	topology *processor.Topology
	blocks   map[*thrashing.Block]*blockResidency

	unmapErr error
	unmaps   []UnmapCall
}

// DefaultPolicy returns a policy with no preferred location and no AccessedBy processors
func DefaultPolicy() thrashing.RangePolicy {
	return thrashing.RangePolicy{PreferredLocation: processor.Invalid}
}

func NewResidency(topology *processor.Topology) *Residency {
	return &Residency{
		topology: topology,
		blocks:   make(map[*thrashing.Block]*blockResidency),
	}
}

func (r *Residency) block(block *thrashing.Block) *blockResidency {
	state, ok := r.blocks[block]
	if !ok {
		state = &blockResidency{
			resident: make(map[processor.ID]thrashing.PageMask),
			policy:   DefaultPolicy(),
		}
		r.blocks[block] = state
	}
	return state
}

// SetPolicy sets the policy of every page of the block
func (r *Residency) SetPolicy(block *thrashing.Block, policy thrashing.RangePolicy) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.block(block).policy = policy
}

// MakeResident moves the page to id, dropping every other copy. id gets a mapping to the block.
func (r *Residency) MakeResident(block *thrashing.Block, page thrashing.PageIndex, id processor.ID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	state := r.block(block)
	for holder, pages := range state.resident {
		pages.Clear(page)
		state.resident[holder] = pages
	}

	pages := state.resident[id]
	pages.Set(page)
	state.resident[id] = pages
	state.mapped.Set(id)
}

// Map gives id a mapping to the block
func (r *Residency) Map(block *thrashing.Block, id processor.ID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.block(block).mapped.Set(id)
}

// SetUnmapError makes every following Unmap call fail with err. A nil err restores success.
func (r *Residency) SetUnmapError(err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.unmapErr = err
}

// Unmaps returns every Unmap call received so far
func (r *Residency) Unmaps() []UnmapCall {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	calls := make([]UnmapCall, len(r.unmaps))
	copy(calls, r.unmaps)
	return calls
}

func (r *Residency) Policy(block *thrashing.Block, page thrashing.PageIndex) thrashing.RangePolicy {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.block(block).policy
}

func (r *Residency) ResidentProcessors(block *thrashing.Block, page thrashing.PageIndex) processor.Mask {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var holders processor.Mask
	for id, pages := range r.block(block).resident {
		if pages.Test(page) {
			holders.Set(id)
		}
	}
	return holders
}

// ClosestResident returns the requester if it holds a copy of the page, and the holder closest
// to it otherwise
func (r *Residency) ClosestResident(block *thrashing.Block, page thrashing.PageIndex, requester processor.ID) processor.ID {
	holders := r.ResidentProcessors(block, page)
	if holders.Test(requester) {
		return requester
	}
	return r.topology.FindClosest(holders, requester)
}

func (r *Residency) ResidentPages(block *thrashing.Block, id processor.ID) thrashing.PageMask {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.block(block).resident[id]
}

func (r *Residency) MappedProcessors(block *thrashing.Block) processor.Mask {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.block(block).mapped
}

func (r *Residency) Unmap(block *thrashing.Block, id processor.ID, region thrashing.Region, pages thrashing.PageMask) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.unmaps = append(r.unmaps, UnmapCall{
		Block:     block,
		Processor: id,
		Region:    region,
		Pages:     pages,
	})
	return r.unmapErr
}
