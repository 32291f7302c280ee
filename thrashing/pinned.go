package thrashing

import (
	"sync"

	"github.com/vkngwrapper/uvm/internal/utils"
	"github.com/vkngwrapper/uvm/memutils"
)

// pinnedPage tracks the unpin deadline of a pinned page. It is linked in the pinned list of its
// block and in the registry of its space. Whoever unlinks it from the registry frees it.
type pinnedPage struct {
	block     *Block
	pageIndex PageIndex
	deadline  uint64

	blockPrev, blockNext *pinnedPage
	inBlockList          bool

	spacePrev, spaceNext *pinnedPage
	inSpaceList          bool
}

var pinnedPagePool = sync.Pool{
	New: func() any {
		return &pinnedPage{}
	},
}

func (s *Space) allocatePin() (*pinnedPage, error) {
	if err := s.allocate(AllocationPinDescriptor); err != nil {
		return nil, err
	}
	return pinnedPagePool.Get().(*pinnedPage), nil
}

func (s *Space) freePin(pin *pinnedPage) {
	memutils.Assert(!pin.inBlockList && !pin.inSpaceList, "freeing pin descriptor for page %d while it is still linked", pin.pageIndex)

	*pin = pinnedPage{}
	pinnedPagePool.Put(pin)
}

func (info *blockThrashing) pushPinned(pin *pinnedPage) {
	pin.blockPrev = info.pinnedListTail
	pin.blockNext = nil
	pin.inBlockList = true

	if info.pinnedListTail != nil {
		info.pinnedListTail.blockNext = pin
	} else {
		info.pinnedListHead = pin
	}
	info.pinnedListTail = pin
	info.pinnedListLen++
}

func (info *blockThrashing) removePinned(pin *pinnedPage) {
	if !pin.inBlockList {
		return
	}

	if pin.blockPrev != nil {
		pin.blockPrev.blockNext = pin.blockNext
	} else {
		info.pinnedListHead = pin.blockNext
	}

	if pin.blockNext != nil {
		pin.blockNext.blockPrev = pin.blockPrev
	} else {
		info.pinnedListTail = pin.blockPrev
	}

	pin.blockPrev = nil
	pin.blockNext = nil
	pin.inBlockList = false
	info.pinnedListLen--
}

func (info *blockThrashing) findPinned(page PageIndex) *pinnedPage {
	for pin := info.pinnedListHead; pin != nil; pin = pin.blockNext {
		if pin.pageIndex == page {
			return pin
		}
	}
	return nil
}

// pinRegistry is the deadline-ordered list of every pin descriptor in a space. Descriptors are
// always appended with a deadline computed from a non-decreasing clock plus a constant, so the
// head is always the next page due.
type pinRegistry struct {
	mutex utils.OptionalMutex

	head, tail *pinnedPage
	count      int

	// inTeardown is written with the space lock held for writing, and read with it held for reading
	// or with the registry lock held
	inTeardown bool

	work unpinWork
}

func (r *pinRegistry) push(pin *pinnedPage) {
	pin.spacePrev = r.tail
	pin.spaceNext = nil
	pin.inSpaceList = true

	if r.tail != nil {
		r.tail.spaceNext = pin
	} else {
		r.head = pin
	}
	r.tail = pin
	r.count++
}

func (r *pinRegistry) remove(pin *pinnedPage) {
	if pin.spacePrev != nil {
		pin.spacePrev.spaceNext = pin.spaceNext
	} else {
		r.head = pin.spaceNext
	}

	if pin.spaceNext != nil {
		pin.spaceNext.spacePrev = pin.spacePrev
	} else {
		r.tail = pin.spacePrev
	}

	pin.spacePrev = nil
	pin.spaceNext = nil
	pin.inSpaceList = false
	r.count--
}

// Len returns the number of pages waiting for deferred unpin
func (r *pinRegistry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.count
}
