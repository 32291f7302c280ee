package thrashing

import (
	"math/bits"
	"strconv"
	"strings"
)

// PageIndex is the index of a page within its Block
type PageIndex uint16

const (
	// MaxPagesPerBlock is the largest number of pages a Block can span
	MaxPagesPerBlock = 512

	pageMaskWords = MaxPagesPerBlock / 64
)

// Region is the half-open range of page indices [First, Outer)
type Region struct {
	First PageIndex
	Outer PageIndex
}

// RegionForPage returns the region holding only the given page
func RegionForPage(page PageIndex) Region {
	return Region{First: page, Outer: page + 1}
}

func (r Region) Empty() bool {
	return r.Outer <= r.First
}

func (r Region) Pages() int {
	if r.Empty() {
		return 0
	}
	return int(r.Outer - r.First)
}

func (r Region) Contains(page PageIndex) bool {
	return page >= r.First && page < r.Outer
}

// PageMask is a set of page indices within a Block. The zero value is the empty set.
type PageMask struct {
	words [pageMaskWords]uint64
}

// PageMaskOf returns a mask containing the provided pages
func PageMaskOf(pages ...PageIndex) PageMask {
	var m PageMask
	for _, page := range pages {
		m.Set(page)
	}
	return m
}

// RegionMask returns a mask containing every page of the region
func RegionMask(region Region) PageMask {
	var m PageMask
	for page := region.First; page < region.Outer; page++ {
		m.Set(page)
	}
	return m
}

func (m *PageMask) Set(page PageIndex) {
	if page >= MaxPagesPerBlock {
		return
	}
	m.words[page/64] |= 1 << (page % 64)
}

func (m *PageMask) Clear(page PageIndex) {
	if page >= MaxPagesPerBlock {
		return
	}
	m.words[page/64] &^= 1 << (page % 64)
}

func (m PageMask) Test(page PageIndex) bool {
	if page >= MaxPagesPerBlock {
		return false
	}
	return m.words[page/64]&(1<<(page%64)) != 0
}

// TestAndSet adds the page to the mask, returning whether it was already present
func (m *PageMask) TestAndSet(page PageIndex) bool {
	present := m.Test(page)
	m.Set(page)
	return present
}

// TestAndClear removes the page from the mask, returning whether it was present
func (m *PageMask) TestAndClear(page PageIndex) bool {
	present := m.Test(page)
	m.Clear(page)
	return present
}

func (m *PageMask) Zero() {
	m.words = [pageMaskWords]uint64{}
}

func (m PageMask) Empty() bool {
	for _, word := range m.words {
		if word != 0 {
			return false
		}
	}
	return true
}

func (m PageMask) Count() int {
	count := 0
	for _, word := range m.words {
		count += bits.OnesCount64(word)
	}
	return count
}

func (m PageMask) And(other PageMask) PageMask {
	for i := range m.words {
		m.words[i] &= other.words[i]
	}
	return m
}

func (m PageMask) Or(other PageMask) PageMask {
	for i := range m.words {
		m.words[i] |= other.words[i]
	}
	return m
}

// AndNot returns the pages of m that are not in other
func (m PageMask) AndNot(other PageMask) PageMask {
	for i := range m.words {
		m.words[i] &^= other.words[i]
	}
	return m
}

// Subset returns true if every page of m is also in other
func (m PageMask) Subset(other PageMask) bool {
	for i := range m.words {
		if m.words[i]&^other.words[i] != 0 {
			return false
		}
	}
	return true
}

// RegionFull returns true if every page of the region is in the mask
func (m PageMask) RegionFull(region Region) bool {
	if region.Empty() {
		return false
	}
	return RegionMask(region).Subset(m)
}

// ForEach calls cb for every page in the mask in ascending order. Iteration stops early if cb
// returns false.
func (m PageMask) ForEach(cb func(page PageIndex) bool) {
	for i, word := range m.words {
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			if !cb(PageIndex(i*64 + bit)) {
				return
			}
			word &= word - 1
		}
	}
}

// ForEachInRegion calls cb for every page in both the mask and the region
func (m PageMask) ForEachInRegion(region Region, cb func(page PageIndex) bool) {
	m.And(RegionMask(region)).ForEach(cb)
}

func (m PageMask) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	first := true
	m.ForEach(func(page PageIndex) bool {
		if !first {
			sb.WriteString(",")
		}
		sb.WriteString(strconv.Itoa(int(page)))
		first = false
		return true
	})
	sb.WriteString("]")
	return sb.String()
}
