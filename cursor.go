package oamap

import "iter"

// Cursor is a forward position over the live entries of a Map.
//
// A Cursor is a map reference plus a slot index, produced only by the map
// (Begin, End, Find, Insert, ...). Two cursors are equal when they refer to
// the same slot of the same map. The zero Cursor is an uninitialized sentinel:
// Entry, Next and Map.Erase report ErrUninitialized for it.
//
// Any structural mutation of the map (an insert that grows it, Rehash,
// Reserve, Clear, Release, Swap or a move) invalidates outstanding cursors,
// except the cursor returned by Erase.
type Cursor[K comparable, V any] struct {
	m   *Map[K, V]
	idx int
}

// Begin returns a cursor at the first live entry in slot order, or End if
// the map is empty.
func (m *Map[K, V]) Begin() Cursor[K, V] {
	m.lazyInit()
	return Cursor[K, V]{m: m, idx: m.table.next(0)}
}

// End returns the past-the-end cursor.
func (m *Map[K, V]) End() Cursor[K, V] {
	m.lazyInit()
	return Cursor[K, V]{m: m, idx: m.table.capacity()}
}

// Next advances c to the next live entry or to End.
// It returns ErrUninitialized for the zero Cursor and ErrOutOfBounds when c
// is already at End; c is left unchanged in both cases.
func (c *Cursor[K, V]) Next() error {
	if c.m == nil {
		return ErrUninitialized
	}
	if c.idx >= c.m.table.capacity() {
		return ErrOutOfBounds
	}
	c.idx = c.m.table.next(c.idx + 1)
	return nil
}

// Entry returns the entry under c. The Value may be modified through the
// returned pointer; the Key must not be.
func (c Cursor[K, V]) Entry() (*Entry[K, V], error) {
	if c.m == nil {
		return nil, ErrUninitialized
	}
	t := &c.m.table
	if c.idx >= t.capacity() {
		return nil, ErrOutOfBounds
	}
	if !t.occupied(c.idx) {
		return nil, ErrInvalidIterator
	}
	return &t.entries[c.idx], nil
}

// Equal reports whether c and o refer to the same position.
func (c Cursor[K, V]) Equal(o Cursor[K, V]) bool {
	return c.m == o.m && c.idx == o.idx
}

// IsEnd reports whether c is the past-the-end cursor of its map.
// The zero Cursor is not at End.
func (c Cursor[K, V]) IsEnd() bool {
	return c.m != nil && c.idx >= c.m.table.capacity()
}

// Index returns the slot index of c, which equals BucketCount() at End.
func (c Cursor[K, V]) Index() int {
	return c.idx
}

// All returns an iterator over key-value pairs in slot order.
// Entries may be erased during iteration; other structural mutations leave
// the remaining sequence unspecified.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := m.table.next(0); i < m.table.capacity(); i = m.table.next(i + 1) {
			e := &m.table.entries[i]
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Keys returns an iterator over keys in slot order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values returns an iterator over values in slot order.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range m.All() {
			if !yield(v) {
				return
			}
		}
	}
}
