package oamap

import (
	"context"
	"log/slog"
	"math"
	"unsafe"
)

// probe resolves key against table t by linear probing from
// hash(key) mod capacity.
//
// It returns (i, true) when slot i holds key. Otherwise it returns the slot
// an insert should use: the first tombstone met on the chain if any, else the
// empty slot that ended it. When the walk wraps back to its start without
// meeting an empty slot it returns (t.capacity(), false), which is never a
// valid index and tells the caller to grow.
func (m *Map[K, V]) probe(t *slots[K, V], key K) (idx int, found bool) {
	c := t.capacity()
	if c == 0 {
		return 0, false
	}
	start := int(m.keyHash(noescape(unsafe.Pointer(&key)), m.seed) % uintptr(c))
	tomb := -1
	for i := start; ; {
		switch t.status[i] {
		case slotEmpty:
			if tomb >= 0 {
				return tomb, false
			}
			return i, false
		case slotOccupied:
			if m.equal(t.entries[i].Key, key) {
				return i, true
			}
		case slotTombstone:
			if tomb < 0 {
				tomb = i
			}
		}
		if i++; i == c {
			i = 0
		}
		if i == start {
			return c, false
		}
	}
}

// find returns the slot holding key, or -1.
func (m *Map[K, V]) find(key K) int {
	if idx, found := m.probe(&m.table, key); found {
		return idx
	}
	return -1
}

func (m *Map[K, V]) equal(a, b K) bool {
	if m.keyEqual != nil {
		return m.keyEqual(a, b)
	}
	return a == b
}

// prepareInsert returns the slot for key, growing the table first when key
// is absent and the probe reported a full table or one more entry would
// exceed the max load factor. found reports whether key is already present,
// in which case nothing was changed.
func (m *Map[K, V]) prepareInsert(key K) (idx int, found bool) {
	idx, found = m.probe(&m.table, key)
	if found {
		return idx, true
	}
	c := m.table.capacity()
	if idx == c || m.exceeds(m.length+1, c) {
		m.rehash(max(growthFactor*c, m.minBuckets(m.length+1)))
		idx, _ = m.probe(&m.table, key)
	}
	return idx, false
}

// exceeds reports whether n entries in c buckets overflow the max load
// factor. It uses the same division as LoadFactor so the two never disagree.
//
//go:nosplit
func (m *Map[K, V]) exceeds(n, c int) bool {
	return float64(n)/float64(c) > m.maxLoad
}

// minBuckets returns the smallest bucket count that holds n entries within
// the max load factor.
func (m *Map[K, V]) minBuckets(n int) int {
	if n <= 0 {
		return baseCapacity
	}
	c := int(math.Ceil(float64(n) / m.maxLoad))
	// settle rounding in n/maxLoad against the check exceeds makes
	for m.exceeds(n, c) {
		c++
	}
	for c > baseCapacity && !m.exceeds(n, c-1) {
		c--
	}
	return max(c, baseCapacity)
}

// rehash rebuilds the table with n buckets, dropping tombstones, and
// releases the old entry array. n must hold every live entry.
func (m *Map[K, V]) rehash(n int) {
	old := m.table
	from := old.capacity()
	t := makeSlots[K, V](n, m.mem)
	for i, s := range old.status {
		if s != slotOccupied {
			continue
		}
		e := &old.entries[i]
		idx, _ := m.probe(&t, e.Key)
		t.construct(idx, e.Key, e.Value)
	}
	m.table = t
	old.release(m.mem)

	if m.logger != nil {
		m.logger.LogAttrs(context.Background(), slog.LevelDebug, "oamap: rehash",
			slog.Int("from", from),
			slog.Int("to", n),
			slog.Int("size", m.length),
		)
	}
}

// Rehash rebuilds the table with at least n buckets, discarding tombstones.
// n is raised to the smallest bucket count that keeps the current entries
// within the max load factor, and to at least 1, so Rehash may also shrink
// the table down to that bound. Rehash invalidates all cursors.
func (m *Map[K, V]) Rehash(n int) {
	m.lazyInit()
	m.rehash(max(n, m.minBuckets(m.length)))
	m.verify()
}

// Reserve rebuilds the table so that it holds n entries without growing,
// i.e. Rehash(ceil(n / MaxLoadFactor())).
func (m *Map[K, V]) Reserve(n int) {
	m.lazyInit()
	m.Rehash(m.minBuckets(n))
}
