// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

// Handle names a port in a task's handle table.
// The zero Handle never names anything.
type Handle uint32

// ShuttleID names a shuttle in its owner's shuttle table.
// The zero ShuttleID never names anything.
type ShuttleID uint32

// Identifiers pack a slot index in the low bits and the slot
// generation in the high bits. Generations start at 1, so a valid
// identifier is never zero.
const (
	indexBits = 16
	indexMask = 1<<indexBits - 1
	maxSlots  = indexMask
)

func makeID(index int, gen uint16) uint32 {
	return uint32(gen)<<indexBits | uint32(index)
}

func splitID(id uint32) (int, uint16) {
	return int(id & indexMask), uint16(id >> indexBits)
}

type slot[T any] struct {
	val  T
	gen  uint16
	used bool
}

// table is a fixed-capacity arena of generation-checked slots.
// Releasing a slot bumps its generation so stale identifiers fail lookup.
// table is not safe for concurrent use.
type table[T any] struct {
	slots []slot[T]
	free  []int32
}

func (tb *table[T]) init(n int) {
	tb.slots = make([]slot[T], n)
	tb.free = make([]int32, n)
	for i := range n {
		tb.slots[i].gen = 1
		tb.free[i] = int32(n - 1 - i)
	}
}

func (tb *table[T]) alloc(v T) (uint32, bool) {
	return tb.allocWith(func(int) T { return v })
}

// allocWith reserves a slot and stores mk(index) in it.
func (tb *table[T]) allocWith(mk func(index int) T) (uint32, bool) {
	n := len(tb.free)
	if n == 0 {
		return 0, false
	}
	i := int(tb.free[n-1])
	tb.free = tb.free[:n-1]
	s := &tb.slots[i]
	s.val = mk(i)
	s.used = true
	return makeID(i, s.gen), true
}

func (tb *table[T]) lookup(id uint32) (*slot[T], bool) {
	i, gen := splitID(id)
	if id == 0 || i >= len(tb.slots) {
		return nil, false
	}
	s := &tb.slots[i]
	if !s.used || s.gen != gen {
		return nil, false
	}
	return s, true
}

func (tb *table[T]) get(id uint32) (T, bool) {
	s, ok := tb.lookup(id)
	if !ok {
		var zero T
		return zero, false
	}
	return s.val, true
}

func (tb *table[T]) release(id uint32) (T, bool) {
	var zero T
	s, ok := tb.lookup(id)
	if !ok {
		return zero, false
	}
	v := s.val
	s.val = zero
	s.used = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	i, _ := splitID(id)
	tb.free = append(tb.free, int32(i))
	return v, true
}

// each calls fn for every used slot in index order.
func (tb *table[T]) each(fn func(id uint32, v T)) {
	for i := range tb.slots {
		s := &tb.slots[i]
		if s.used {
			fn(makeID(i, s.gen), s.val)
		}
	}
}

func (tb *table[T]) available() int { return len(tb.free) }

func (tb *table[T]) len() int { return len(tb.slots) - len(tb.free) }
