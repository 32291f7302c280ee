package thrashing

import (
	"math"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/hashicorp/go-multierror"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/rs/xid"
	"github.com/vkngwrapper/uvm/internal/utils"
	"github.com/vkngwrapper/uvm/memutils"
	"github.com/vkngwrapper/uvm/processor"
	"golang.org/x/exp/slog"
)

// defaultPageSize is the page size used when SpaceOptions.PageSize is left empty
const defaultPageSize uint64 = 4096

// SpaceOptions contains the settings of a new Space. Residency and Topology are required.
type SpaceOptions struct {
	// Flags indicates specific space behaviors to activate or deactivate
	Flags SpaceCreateFlags
	// PageSize is the size of a page in bytes. It must be a power of two. It is 4096 when left empty.
	PageSize uint64

	// Residency is the residency engine the space consults about page copies and mappings
	Residency Residency
	// Topology is the processor accessibility table of the space
	Topology *processor.Topology
	// Recorder is an optional sink for thrashing and throttling events
	Recorder EventRecorder

	// AllocationHook is an optional callback run before the engine allocates tracking state. If it
	// returns an error the allocation is treated as having run out of memory.
	AllocationHook func(kind AllocationKind) error
}

// Space is the thrashing state of a single unified virtual address space. It owns the parameter
// snapshot, the blocks created from it, and the registry of pinned pages waiting to be unpinned.
type Space struct {
	id     xid.ID
	logger *slog.Logger
	module *Module

	clock          Clock
	residency      Residency
	topology       *processor.Topology
	recorder       EventRecorder
	allocationHook func(kind AllocationKind) error

	pageSize uint64
	flags    SpaceCreateFlags
	useMutex bool

	mutex     utils.OptionalRWMutex
	paramsPtr atomic.Pointer[Params]

	blocksMutex utils.OptionalMutex
	blocks      *swiss.Map[uint64, *Block]

	registry pinRegistry

	stopOnce sync.Once
	unloaded bool
}

// ID returns the unique identifier of the space
func (s *Space) ID() xid.ID {
	return s.id
}

func (s *Space) Logger() *slog.Logger {
	return s.logger
}

func (s *Space) PageSize() uint64 {
	return s.pageSize
}

// Lock acquires the space lock in write mode
func (s *Space) Lock() {
	s.mutex.Lock()
}

func (s *Space) Unlock() {
	s.mutex.Unlock()
}

// RLock acquires the space lock in read mode. Fault handling and event reporting run with it held
// in read mode.
func (s *Space) RLock() {
	s.mutex.RLock()
}

func (s *Space) RUnlock() {
	s.mutex.RUnlock()
}

// assertLocked checks that the caller holds the space lock in either mode and the block lock
func (s *Space) assertLocked(block *Block) {
	memutils.Assert(s.mutex.RHeld(), "space lock is not held")
	memutils.Assert(block.mutex.Held(), "lock of block %#x is not held", block.start)
}

func (s *Space) params() *Params {
	return s.paramsPtr.Load()
}

// Params returns a copy of the parameters of the space
func (s *Space) Params() Params {
	return *s.params()
}

func (s *Space) setParams(params Params) {
	s.paramsPtr.Store(&params)
}

// allocate asks the allocation hook for permission to allocate tracking state
func (s *Space) allocate(kind AllocationKind) error {
	if s.allocationHook == nil {
		return nil
	}

	if err := s.allocationHook(kind); err != nil {
		return errors.Wrapf(ErrNoMemory, "failed to allocate %s: %v", kind, err)
	}
	return nil
}

// CreateBlock registers a new block of pageCount pages starting at start. The start address must
// be page aligned.
func (s *Space) CreateBlock(start uint64, pageCount int) (*Block, error) {
	if pageCount <= 0 || pageCount > MaxPagesPerBlock {
		return nil, errors.Wrapf(ErrInvalidArgument, "block page count %d must be within [1, %d]", pageCount, MaxPagesPerBlock)
	}
	if memutils.AlignDown(start, s.pageSize) != start {
		return nil, errors.Wrapf(ErrInvalidArgument, "block start %#x is not aligned to the page size %d", start, s.pageSize)
	}

	// The last byte of the block must be addressable
	sizeHigh, size := bits.Mul64(uint64(pageCount), s.pageSize)
	if sizeHigh != 0 || start > math.MaxUint64-(size-1) {
		return nil, errors.Wrapf(ErrInvalidArgument, "block of %d pages at %#x wraps around the address space", pageCount, start)
	}

	block := &Block{
		mutex:     utils.OptionalMutex{UseMutex: s.useMutex},
		space:     s,
		start:     start,
		pageCount: pageCount,
	}

	s.blocksMutex.Lock()
	defer s.blocksMutex.Unlock()

	if s.blocks.Has(start) {
		return nil, errors.Wrapf(ErrInvalidArgument, "a block already starts at %#x", start)
	}

	s.blocks.Put(start, block)
	return block, nil
}

// Block returns the registered block starting at start
func (s *Space) Block(start uint64) (*Block, bool) {
	s.blocksMutex.Lock()
	defer s.blocksMutex.Unlock()

	return s.blocks.Get(start)
}

func (s *Space) BlockCount() int {
	s.blocksMutex.Lock()
	defer s.blocksMutex.Unlock()

	return s.blocks.Count()
}

func (s *Space) unregisterBlock(block *Block) {
	s.blocksMutex.Lock()
	defer s.blocksMutex.Unlock()

	s.blocks.Delete(block.start)
}

// snapshotBlocks returns the registered blocks in no particular order
func (s *Space) snapshotBlocks() []*Block {
	s.blocksMutex.Lock()
	defer s.blocksMutex.Unlock()

	blocks := make([]*Block, 0, s.blocks.Count())
	s.blocks.Iter(func(_ uint64, block *Block) bool {
		blocks = append(blocks, block)
		return false
	})
	return blocks
}

// RegisterGPU notifies the space that a GPU was registered to it. When the module has simulated
// devices, the parameters are derived again unless SetPolicy overrode them.
func (s *Space) RegisterGPU(id processor.ID) error {
	if !id.IsGPU() {
		return errors.Wrapf(ErrInvalidArgument, "processor %s is not a GPU", id)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.module.options.SimulatedDevices > 0 && !s.params().TestOverrides {
		s.setParams(deriveParams(s.module.tunables, s.module.options.SimulatedDevices))
		s.logger.Debug("Space::RegisterGPU re-derived thrashing parameters", slog.String("processor", id.String()))
	}

	return nil
}

// PinnedPageCount returns the number of pinned pages currently waiting for deferred unpin
func (s *Space) PinnedPageCount() int {
	return s.registry.Len()
}

// Stop prevents any further unpin sweep from being scheduled and waits for a sweep in progress to
// complete. The caller must not hold the space lock.
func (s *Space) Stop() {
	s.stopOnce.Do(func() {
		s.mutex.Lock()
		s.registry.inTeardown = true
		s.mutex.Unlock()

		s.registry.work.CancelSync()
	})
}

// Unload tears down the thrashing state of every block in the space and removes the space from
// its module. Stop is called first if it was not called already. The registry of pinned pages
// must be empty once every block was torn down: ErrRegistryNotEmpty is returned otherwise.
func (s *Space) Unload() error {
	s.Stop()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.unloaded {
		return errors.Wrap(ErrInvalidState, "space was already unloaded")
	}

	for _, block := range s.snapshotBlocks() {
		block.Lock()
		s.OnModuleUnload(block)
		block.Unlock()
	}

	s.unloaded = true
	s.module.removeSpace(s)

	leaked := s.registry.Len()
	memutils.Assert(leaked == 0, "%d pinned pages remain registered at unload", leaked)
	if leaked != 0 {
		return errors.Wrapf(ErrRegistryNotEmpty, "%d pinned pages remain registered", leaked)
	}

	return nil
}

// Validate checks the invariants of every block of the space and of the pinned page registry. It
// must be called with the space lock held in write mode, or while no other goroutine is using
// the space.
func (s *Space) Validate() error {
	var result *multierror.Error

	registered := 0
	for _, block := range s.snapshotBlocks() {
		block.Lock()
		if err := block.Validate(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "block %#x", block.start))
		}
		if block.info != nil {
			registered += block.info.pinnedListLen
		}
		block.Unlock()
	}

	s.registry.mutex.Lock()
	count := 0
	var lastDeadline uint64
	for pin := s.registry.head; pin != nil; pin = pin.spaceNext {
		count++
		if pin.deadline < lastDeadline {
			result = multierror.Append(result, errors.Newf("pin registry is out of order at page %d of block %#x", pin.pageIndex, pin.block.start))
		}
		lastDeadline = pin.deadline
	}
	if count != s.registry.count {
		result = multierror.Append(result, errors.Newf("the listed number of registered pins (%d) does not match the actual number of pins (%d)", s.registry.count, count))
	}
	s.registry.mutex.Unlock()

	if count > registered {
		result = multierror.Append(result, errors.Newf("%d pins are registered but only %d are linked to blocks", count, registered))
	}

	return result.ErrorOrNil()
}

// BuildStatsString returns a JSON document describing the parameters of the space and the
// processor statistics of its module. If detailed is true, the tracking state of every block
// is included as well. The caller must not hold the space lock or any block lock.
func (s *Space) BuildStatsString(detailed bool) string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	obj.Name("ID").String(s.id.String())
	obj.Name("PageSize").Int(int(s.pageSize))
	obj.Name("Flags").String(s.flags.String())

	paramsObj := obj.Name("Params").Object()
	s.params().printJson(paramsObj)
	paramsObj.End()

	obj.Name("PinnedPages").Int(s.registry.Len())
	obj.Name("BlockCount").Int(s.BlockCount())

	s.module.printProcessorStats(obj)

	if detailed {
		s.printBlocks(obj)
	}

	obj.End()
	return string(writer.Bytes())
}
