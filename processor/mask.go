package processor

import (
	"math/bits"
	"strings"
)

const maskWords = MaxProcessors / 64

// Mask is a set of processor ids. The zero value is the empty set and masks are compared and
// copied by value.
type Mask struct {
	words [maskWords]uint64
}

// MaskOf returns a mask containing the provided ids. Invalid ids are ignored.
func MaskOf(ids ...ID) Mask {
	var m Mask
	for _, id := range ids {
		m.Set(id)
	}
	return m
}

func (m *Mask) Set(id ID) {
	if !id.IsValid() {
		return
	}
	m.words[id/64] |= 1 << (id % 64)
}

func (m *Mask) Clear(id ID) {
	if !id.IsValid() {
		return
	}
	m.words[id/64] &^= 1 << (id % 64)
}

func (m Mask) Test(id ID) bool {
	if !id.IsValid() {
		return false
	}
	return m.words[id/64]&(1<<(id%64)) != 0
}

// TestAndSet adds id to the mask, returning whether it was already present
func (m *Mask) TestAndSet(id ID) bool {
	present := m.Test(id)
	m.Set(id)
	return present
}

// TestAndClear removes id from the mask, returning whether it was present
func (m *Mask) TestAndClear(id ID) bool {
	present := m.Test(id)
	m.Clear(id)
	return present
}

func (m *Mask) Zero() {
	m.words = [maskWords]uint64{}
}

func (m Mask) Empty() bool {
	for _, word := range m.words {
		if word != 0 {
			return false
		}
	}
	return true
}

func (m Mask) Count() int {
	count := 0
	for _, word := range m.words {
		count += bits.OnesCount64(word)
	}
	return count
}

func (m Mask) And(other Mask) Mask {
	for i := range m.words {
		m.words[i] &= other.words[i]
	}
	return m
}

func (m Mask) Or(other Mask) Mask {
	for i := range m.words {
		m.words[i] |= other.words[i]
	}
	return m
}

// AndNot returns the members of m that are not in other
func (m Mask) AndNot(other Mask) Mask {
	for i := range m.words {
		m.words[i] &^= other.words[i]
	}
	return m
}

// Subset returns true if every member of m is also a member of other
func (m Mask) Subset(other Mask) bool {
	for i := range m.words {
		if m.words[i]&^other.words[i] != 0 {
			return false
		}
	}
	return true
}

func (m Mask) Equal(other Mask) bool {
	return m.words == other.words
}

// First returns the lowest id in the mask, or Invalid if the mask is empty
func (m Mask) First() ID {
	for i, word := range m.words {
		if word != 0 {
			return ID(i*64 + bits.TrailingZeros64(word))
		}
	}
	return Invalid
}

// ForEach calls cb for every id in the mask in ascending order. Iteration stops early if cb
// returns false.
func (m Mask) ForEach(cb func(id ID) bool) {
	for i, word := range m.words {
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			if !cb(ID(i*64 + bit)) {
				return
			}
			word &= word - 1
		}
	}
}

func (m Mask) IDs() []ID {
	ids := make([]ID, 0, m.Count())
	m.ForEach(func(id ID) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

func (m Mask) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	m.ForEach(func(id ID) bool {
		if !first {
			sb.WriteString(",")
		}
		sb.WriteString(id.String())
		first = false
		return true
	})
	sb.WriteString("}")
	return sb.String()
}
