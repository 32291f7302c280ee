package thrashing

import (
	"sort"
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

func (s *Space) printBlocks(json jwriter.ObjectState) {
	blocks := s.snapshotBlocks()
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].start < blocks[j].start
	})

	blocksObj := json.Name("Blocks").Object()
	defer blocksObj.End()

	for _, block := range blocks {
		block.Lock()
		blockObj := blocksObj.Name(strconv.FormatUint(block.start, 16)).Object()
		block.printJson(blockObj)
		blockObj.End()
		block.Unlock()
	}
}

func (b *Block) printJson(json jwriter.ObjectState) {
	json.Name("PageCount").Int(b.pageCount)

	info := b.info
	json.Name("Tracked").Bool(info != nil)
	if info == nil {
		return
	}

	json.Name("PageRecords").Bool(info.pages != nil)
	json.Name("ThrashingPages").String(info.thrashingPages.String())
	json.Name("PinnedPages").String(info.pinnedPages.String())
	json.Name("ThrashingCount").Int(int(info.thrashingCount))
	json.Name("PinnedCount").Int(int(info.pinnedCount))
	json.Name("ResetCount").Int(int(info.resetCount))
	json.Name("ThrottleEvents").Int(int(info.throttleEvents))
	json.Name("LastProcessor").String(info.lastProcessor.String())

	if info.pages == nil {
		return
	}

	pagesArray := json.Name("Pages").Array()
	defer pagesArray.End()

	info.thrashingPages.ForEach(func(index PageIndex) bool {
		page := &info.pages[index]

		pageObj := pagesArray.Object()
		pageObj.Name("Index").Int(int(index))
		pageObj.Name("Events").Int(int(page.thrashingEvents))
		pageObj.Name("Processors").String(page.processors.String())
		pageObj.Name("Throttled").String(page.throttledProcessors.String())
		pageObj.Name("ThrottleCount").Int(int(page.throttleCount))
		pageObj.Name("DoNotThrottle").String(page.doNotThrottle.String())
		pageObj.Name("Pinned").Bool(page.pinned)
		if page.pinned {
			pageObj.Name("PinnedResidency").String(page.pinnedResidency.String())
		}
		pageObj.Name("MigrationEvents").Bool(page.hasMigrationEvents)
		pageObj.Name("RevocationEvents").Bool(page.hasRevocationEvents)
		pageObj.End()

		return true
	})
}
