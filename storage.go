package oamap

import "fmt"

// slotState tags a slot of the table.
type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	slotTombstone
)

// slots is the fixed-capacity table: a status tag per slot and a parallel
// entry array obtained from the map's Memory. An entry is meaningful only
// where its status is slotOccupied; every transition away from slotOccupied
// zeroes the entry so the table never pins dead keys or values.
type slots[K comparable, V any] struct {
	status  []slotState
	entries []Entry[K, V]
}

func makeSlots[K comparable, V any](n int, mem Memory[Entry[K, V]]) slots[K, V] {
	entries := mem.Allocate(n)
	if len(entries) != n {
		panic(fmt.Sprintf("oamap: memory strategy %T returned %d entries, want %d",
			mem, len(entries), n))
	}
	return slots[K, V]{
		status:  make([]slotState, n),
		entries: entries,
	}
}

//go:nosplit
func (t *slots[K, V]) capacity() int {
	return len(t.status)
}

//go:nosplit
func (t *slots[K, V]) occupied(i int) bool {
	return t.status[i] == slotOccupied
}

// construct places key and value into slot i and marks it occupied.
func (t *slots[K, V]) construct(i int, key K, value V) *Entry[K, V] {
	e := &t.entries[i]
	e.Key = key
	e.Value = value
	t.status[i] = slotOccupied
	return e
}

// destroy zeroes the entry in slot i and leaves a tombstone behind.
func (t *slots[K, V]) destroy(i int) {
	t.entries[i] = Entry[K, V]{}
	t.status[i] = slotTombstone
}

// reset empties every slot, keeping the capacity.
func (t *slots[K, V]) reset() {
	for i, s := range t.status {
		if s == slotOccupied {
			t.entries[i] = Entry[K, V]{}
		}
	}
	clear(t.status)
}

// release empties the table and hands the entry array back to mem.
func (t *slots[K, V]) release(mem Memory[Entry[K, V]]) {
	if t.entries == nil {
		return
	}
	t.reset()
	mem.Release(t.entries)
	t.status, t.entries = nil, nil
}

// next returns the first occupied index >= i, or the capacity.
func (t *slots[K, V]) next(i int) int {
	for ; i < len(t.status); i++ {
		if t.status[i] == slotOccupied {
			return i
		}
	}
	return len(t.status)
}

// count returns the number of occupied and tombstone slots.
func (t *slots[K, V]) count() (occupied, tombstones int) {
	for _, s := range t.status {
		switch s {
		case slotOccupied:
			occupied++
		case slotTombstone:
			tombstones++
		}
	}
	return
}
