package scheduler

// arena stores records under (slot, generation) pairs. Removing a record bumps
// the generation of its slot, so a stale pair never matches a reused slot.
type arena[T any] struct {
	slots []arenaSlot[T]
	free  []uint32
	n     int
}

type arenaSlot[T any] struct {
	gen  uint32
	used bool
	v    T
}

func (a *arena[T]) put(v T) (slot, gen uint32) {
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		slot = uint32(len(a.slots))
		a.slots = append(a.slots, arenaSlot[T]{gen: 1})
	}
	s := &a.slots[slot]
	s.used = true
	s.v = v
	a.n++
	return slot, s.gen
}

func (a *arena[T]) get(slot, gen uint32) (v T, ok bool) {
	if gen == 0 || int(slot) >= len(a.slots) {
		return v, false
	}
	s := &a.slots[slot]
	if !s.used || s.gen != gen {
		return v, false
	}
	return s.v, true
}

func (a *arena[T]) remove(slot, gen uint32) bool {
	if _, ok := a.get(slot, gen); !ok {
		return false
	}
	s := &a.slots[slot]
	var zero T
	s.v = zero
	s.used = false
	s.gen++
	if s.gen == 0 {
		// Generation zero marks the invalid handle.
		s.gen = 1
	}
	a.free = append(a.free, slot)
	a.n--
	return true
}

func (a *arena[T]) len() int {
	return a.n
}

// each calls fn for every live record in slot order.
func (a *arena[T]) each(fn func(T)) {
	for i := range a.slots {
		if a.slots[i].used {
			fn(a.slots[i].v)
		}
	}
}
