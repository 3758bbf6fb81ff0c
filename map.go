package oamap

import (
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unsafe"

	"github.com/llxisdsh/oamap/internal/opt"
)

// Map is an open-addressing hash table with linear probing.
//
// Keys and values are stored inline in a flat slot array, next to a parallel
// array of slot tags (empty, occupied, tombstone). Erasing leaves a tombstone
// that lookups skip and inserts reuse; tombstones are discarded when the
// table is rehashed. The table grows (at least doubling) whenever an insert
// would push Size()/BucketCount() above MaxLoadFactor() or the probe finds no
// free slot.
//
// A Map is not safe for concurrent use. The zero Map is empty and ready for
// use with default options. A Map must not be copied after first use; use
// Clone or Move.
type Map[K comparable, V any] struct {
	_        noCopy
	table    slots[K, V]
	length   int
	maxLoad  float64
	seed     uintptr
	keyHash  HashFunc
	keyEqual func(a, b K) bool
	valEqual func(a, b V) bool
	mem      Memory[Entry[K, V]]
	logger   *slog.Logger
}

// New creates a Map with a single bucket unless WithCapacity says otherwise.
//
// Configuration options:
//   - WithCapacity(n): initial bucket count.
//   - WithMaxLoadFactor(z): growth threshold in (0, 1], default 0.75.
//   - WithKeyHasher / WithKeyHasherUnsafe / WithBuiltInHasher: hashing.
//   - WithKeyEqual / WithValueEqual: key and value equality.
//   - WithMemory(mem): entry array storage strategy.
//   - WithLogger(l): debug records for rehashes.
//
// Example:
//
//	m := New[string, int](WithCapacity(64), WithMaxLoadFactor(0.5))
//	m.Insert("a", 1)
//	v, err := m.At("a")
func New[K comparable, V any](options ...func(*MapConfig)) *Map[K, V] {
	var cfg MapConfig
	for _, o := range options {
		o(&cfg)
	}
	m := &Map[K, V]{}
	m.init(&cfg)
	return m
}

// NewFrom creates a Map holding the pairs of seq. Later duplicates of a key
// are ignored, as with Insert.
func NewFrom[K comparable, V any](
	seq iter.Seq2[K, V],
	options ...func(*MapConfig),
) *Map[K, V] {
	m := New[K, V](options...)
	m.InsertSeq(seq)
	return m
}

// NewOf creates a Map holding entries, sized up front so that loading them
// does not rehash. Later duplicates of a key are ignored.
func NewOf[K comparable, V any](
	entries []Entry[K, V],
	options ...func(*MapConfig),
) *Map[K, V] {
	m := New[K, V](options...)
	if need := m.minBuckets(len(entries)); need > m.table.capacity() {
		m.rehash(need)
	}
	m.InsertEntries(entries...)
	return m
}

func (m *Map[K, V]) init(cfg *MapConfig) {
	// parse interface
	if cfg.keyHash == nil {
		cfg.keyHash = parseKeyInterface[K]()
	}
	m.keyHash = defaultHasher[K]()
	if cfg.keyHash != nil {
		m.keyHash = cfg.keyHash
	}
	m.keyEqual = optionAs[func(a, b K) bool](cfg.keyEqual, "WithKeyEqual")
	m.valEqual = defaultValueEqual[V]()
	if eq := optionAs[func(a, b V) bool](cfg.valEqual, "WithValueEqual"); eq != nil {
		m.valEqual = eq
	}
	m.mem = HeapMemory[Entry[K, V]]{}
	if mem := optionAs[Memory[Entry[K, V]]](cfg.memory, "WithMemory"); mem != nil {
		m.mem = mem
	}
	m.maxLoad = defaultMaxLoadFactor
	if cfg.maxLoadFactorSet {
		if !validLoadFactor(cfg.maxLoadFactor) {
			panic(fmt.Errorf("%w: max load factor %v outside (0, 1]",
				ErrInvalidArgument, cfg.maxLoadFactor))
		}
		m.maxLoad = cfg.maxLoadFactor
	}
	m.logger = cfg.logger
	m.seed = uintptr(rand.Uint64())
	m.table = makeSlots[K, V](max(cfg.capacity, baseCapacity), m.mem)
}

func (m *Map[K, V]) lazyInit() {
	if m.mem == nil {
		m.init(&MapConfig{})
	}
}

// verify panics if the table breaks an invariant. It is compiled in only
// with the oamap_checks build tag.
func (m *Map[K, V]) verify() {
	if opt.Checks_ {
		if err := m.checkInvariants(); err != nil {
			panic(err)
		}
	}
}

// checkInvariants reports the first broken table invariant, if any.
func (m *Map[K, V]) checkInvariants() error {
	t := &m.table
	if t.capacity() < baseCapacity {
		return fmt.Errorf("oamap: capacity %d below %d", t.capacity(), baseCapacity)
	}
	if len(t.entries) != len(t.status) {
		return fmt.Errorf("oamap: %d entries for %d slots", len(t.entries), len(t.status))
	}
	if !validLoadFactor(m.maxLoad) {
		return fmt.Errorf("oamap: max load factor %v", m.maxLoad)
	}
	occupied, _ := t.count()
	if occupied != m.length {
		return fmt.Errorf("oamap: length %d, occupied slots %d", m.length, occupied)
	}
	if m.exceeds(m.length, t.capacity()) {
		return fmt.Errorf("oamap: load factor %v above %v", m.LoadFactor(), m.maxLoad)
	}
	for i, s := range t.status {
		if s != slotOccupied {
			continue
		}
		if j := m.find(t.entries[i].Key); j != i {
			return fmt.Errorf("oamap: key %v in slot %d resolves to %d",
				t.entries[i].Key, i, j)
		}
	}
	return nil
}

// ============================================================================
// Capacity
// ============================================================================

// Size returns the number of entries.
func (m *Map[K, V]) Size() int {
	return m.length
}

// Empty reports whether the map holds no entries.
func (m *Map[K, V]) Empty() bool {
	return m.length == 0
}

// MaxSize returns the largest number of entries the map could address.
func (m *Map[K, V]) MaxSize() int {
	return maxInt / (int(unsafe.Sizeof(Entry[K, V]{})) + int(unsafe.Sizeof(slotEmpty)))
}

// BucketCount returns the number of slots.
func (m *Map[K, V]) BucketCount() int {
	m.lazyInit()
	return m.table.capacity()
}

// LoadFactor returns Size()/BucketCount().
func (m *Map[K, V]) LoadFactor() float64 {
	m.lazyInit()
	return float64(m.length) / float64(m.table.capacity())
}

// MaxLoadFactor returns the growth threshold.
func (m *Map[K, V]) MaxLoadFactor() float64 {
	m.lazyInit()
	return m.maxLoad
}

// SetMaxLoadFactor changes the growth threshold. It returns an error wrapping
// ErrInvalidArgument, and changes nothing, if z is outside (0, 1]. If the
// current load exceeds z the table is rehashed to fit.
func (m *Map[K, V]) SetMaxLoadFactor(z float64) error {
	if !validLoadFactor(z) {
		return fmt.Errorf("%w: max load factor %v outside (0, 1]", ErrInvalidArgument, z)
	}
	m.lazyInit()
	m.maxLoad = z
	if m.exceeds(m.length, m.table.capacity()) {
		m.rehash(m.minBuckets(m.length))
	}
	m.verify()
	return nil
}

// ============================================================================
// Observers
// ============================================================================

// HashFunction returns the key hash function bound to this map's seed.
func (m *Map[K, V]) HashFunction() func(key K) uintptr {
	m.lazyInit()
	keyHash, seed := m.keyHash, m.seed
	return func(key K) uintptr {
		return keyHash(noescape(unsafe.Pointer(&key)), seed)
	}
}

// KeyEqual returns the key equality predicate.
func (m *Map[K, V]) KeyEqual() func(a, b K) bool {
	if m.keyEqual != nil {
		return m.keyEqual
	}
	return func(a, b K) bool {
		return a == b
	}
}

// Memory returns the storage strategy of the entry array.
func (m *Map[K, V]) Memory() Memory[Entry[K, V]] {
	m.lazyInit()
	return m.mem
}

// ============================================================================
// Modifiers
// ============================================================================

// Insert adds key with value if key is absent and reports true. If key is
// present nothing changes and it reports false. The cursor points at the
// entry for key either way.
func (m *Map[K, V]) Insert(key K, value V) (Cursor[K, V], bool) {
	m.lazyInit()
	idx, found := m.prepareInsert(key)
	if found {
		return Cursor[K, V]{m: m, idx: idx}, false
	}
	m.table.construct(idx, key, value)
	m.length++
	m.verify()
	return Cursor[K, V]{m: m, idx: idx}, true
}

// InsertEntry is Insert for an Entry.
func (m *Map[K, V]) InsertEntry(e Entry[K, V]) (Cursor[K, V], bool) {
	return m.Insert(e.Key, e.Value)
}

// InsertSeq inserts every pair of seq; keys already present keep their value.
func (m *Map[K, V]) InsertSeq(seq iter.Seq2[K, V]) {
	for k, v := range seq {
		m.Insert(k, v)
	}
}

// InsertEntries inserts entries; keys already present keep their value.
func (m *Map[K, V]) InsertEntries(entries ...Entry[K, V]) {
	for _, e := range entries {
		m.Insert(e.Key, e.Value)
	}
}

// TryEmplace inserts key with the value built by ctor if key is absent.
// ctor is not called when key is present.
func (m *Map[K, V]) TryEmplace(key K, ctor func() V) (Cursor[K, V], bool) {
	m.lazyInit()
	idx, found := m.prepareInsert(key)
	if found {
		return Cursor[K, V]{m: m, idx: idx}, false
	}
	var value V
	if ctor != nil {
		value = ctor()
	}
	m.table.construct(idx, key, value)
	m.length++
	m.verify()
	return Cursor[K, V]{m: m, idx: idx}, true
}

// InsertOrAssign stores value under key. It reports true if key was
// inserted and false if an existing value was overwritten.
func (m *Map[K, V]) InsertOrAssign(key K, value V) (Cursor[K, V], bool) {
	m.lazyInit()
	idx, found := m.prepareInsert(key)
	if found {
		m.table.entries[idx].Value = value
		return Cursor[K, V]{m: m, idx: idx}, false
	}
	m.table.construct(idx, key, value)
	m.length++
	m.verify()
	return Cursor[K, V]{m: m, idx: idx}, true
}

// Index returns a pointer to the value for key, inserting the zero value
// first if key is absent. The pointer is valid until the next structural
// mutation of the map.
func (m *Map[K, V]) Index(key K) *V {
	m.lazyInit()
	idx, found := m.prepareInsert(key)
	if !found {
		var zero V
		m.table.construct(idx, key, zero)
		m.length++
		m.verify()
	}
	return &m.table.entries[idx].Value
}

// eraseAt tombstones the live slot i.
func (m *Map[K, V]) eraseAt(i int) {
	m.table.destroy(i)
	m.length--
}

// Erase removes the entry under pos and returns a cursor to the next live
// entry (or End). It returns ErrUninitialized for the zero Cursor and
// ErrInvalidIterator if pos is at End, belongs to another map or no longer
// points at a live entry; the map is unchanged on error.
func (m *Map[K, V]) Erase(pos Cursor[K, V]) (Cursor[K, V], error) {
	if pos.m == nil {
		return pos, ErrUninitialized
	}
	if !m.live(pos) {
		return pos, ErrInvalidIterator
	}
	m.eraseAt(pos.idx)
	m.verify()
	return Cursor[K, V]{m: m, idx: m.table.next(pos.idx + 1)}, nil
}

// live reports whether pos is one of m's cursors on an occupied slot.
func (m *Map[K, V]) live(pos Cursor[K, V]) bool {
	return pos.m == m && pos.idx >= 0 && pos.idx < m.table.capacity() &&
		m.table.occupied(pos.idx)
}

// EraseKey removes key and returns the number of entries removed (0 or 1).
func (m *Map[K, V]) EraseKey(key K) int {
	idx := m.find(key)
	if idx < 0 {
		return 0
	}
	m.eraseAt(idx)
	m.verify()
	return 1
}

// EraseRange removes the entries in [first, last) and returns last.
// Both cursors are validated before anything is erased: they must belong to
// m, first must not come after last, and each must be End or on a live
// entry. first == last is a no-op.
func (m *Map[K, V]) EraseRange(first, last Cursor[K, V]) (Cursor[K, V], error) {
	if first.m == nil || last.m == nil {
		return last, ErrUninitialized
	}
	if first.m != m || last.m != m {
		return last, ErrInvalidIterator
	}
	if first.Equal(last) {
		return last, nil
	}
	if first.idx > last.idx || !m.live(first) || !(last.IsEnd() || m.live(last)) {
		return last, ErrInvalidIterator
	}
	for i := first.idx; i < last.idx; i = m.table.next(i + 1) {
		m.eraseAt(i)
	}
	m.verify()
	return last, nil
}

// Clear removes every entry, keeping the bucket count.
func (m *Map[K, V]) Clear() {
	m.lazyInit()
	m.table.reset()
	m.length = 0
	m.verify()
}

// Release removes every entry, returns the entry array to the memory
// strategy and leaves the map empty with a single bucket.
func (m *Map[K, V]) Release() {
	m.lazyInit()
	m.table.release(m.mem)
	m.resetBase()
}

// resetBase installs a fresh single-bucket table. The previous table must
// have been released or handed to another map.
func (m *Map[K, V]) resetBase() {
	m.table = makeSlots[K, V](baseCapacity, m.mem)
	m.length = 0
}

// Swap exchanges the contents and configuration of m and other. A nil
// other leaves m unchanged.
func (m *Map[K, V]) Swap(other *Map[K, V]) {
	if other == nil || other == m {
		return
	}
	m.lazyInit()
	other.lazyInit()
	m.table, other.table = other.table, m.table
	m.length, other.length = other.length, m.length
	m.maxLoad, other.maxLoad = other.maxLoad, m.maxLoad
	m.seed, other.seed = other.seed, m.seed
	m.keyHash, other.keyHash = other.keyHash, m.keyHash
	m.keyEqual, other.keyEqual = other.keyEqual, m.keyEqual
	m.valEqual, other.valEqual = other.valEqual, m.valEqual
	m.mem, other.mem = other.mem, m.mem
	m.logger, other.logger = other.logger, m.logger
}

// Merge moves into m every entry of other whose key is absent from m,
// erasing it from other. Entries whose key m already holds stay in other.
// A nil other leaves m unchanged.
func (m *Map[K, V]) Merge(other *Map[K, V]) {
	if other == nil || other == m {
		return
	}
	m.lazyInit()
	other.lazyInit()
	t := &other.table
	for i, s := range t.status {
		if s != slotOccupied {
			continue
		}
		e := &t.entries[i]
		idx, found := m.prepareInsert(e.Key)
		if found {
			continue
		}
		m.table.construct(idx, e.Key, e.Value)
		m.length++
		other.eraseAt(i)
	}
	m.verify()
	other.verify()
}

// ============================================================================
// Copy and move
// ============================================================================

// adoptConfig copies the hashing, equality, load and logging configuration
// of src. The seed travels with the hasher so copied tables stay valid.
func (m *Map[K, V]) adoptConfig(src *Map[K, V]) {
	m.maxLoad = src.maxLoad
	m.seed = src.seed
	m.keyHash = src.keyHash
	m.keyEqual = src.keyEqual
	m.valEqual = src.valEqual
	m.logger = src.logger
}

// Clone returns a deep copy of m using the same memory strategy.
func (m *Map[K, V]) Clone() *Map[K, V] {
	m.lazyInit()
	return m.CloneWith(m.mem)
}

// CloneWith returns a deep copy of m whose entry array comes from mem.
// A nil mem selects HeapMemory.
func (m *Map[K, V]) CloneWith(mem Memory[Entry[K, V]]) *Map[K, V] {
	m.lazyInit()
	if mem == nil {
		mem = HeapMemory[Entry[K, V]]{}
	}
	c := &Map[K, V]{mem: mem}
	c.adoptConfig(m)
	c.copyTable(m)
	return c
}

// copyTable replaces m's table with a slot-for-slot copy of src's,
// tombstones included.
func (m *Map[K, V]) copyTable(src *Map[K, V]) {
	t := makeSlots[K, V](src.table.capacity(), m.mem)
	copy(t.status, src.table.status)
	for i, s := range src.table.status {
		if s == slotOccupied {
			t.entries[i] = src.table.entries[i]
		}
	}
	m.table = t
	m.length = src.length
}

// CopyFrom replaces the contents and configuration of m with a deep copy of
// src. m keeps its own memory strategy. A nil src leaves m unchanged.
func (m *Map[K, V]) CopyFrom(src *Map[K, V]) {
	if src == nil || src == m {
		return
	}
	m.lazyInit()
	src.lazyInit()
	m.table.release(m.mem)
	m.adoptConfig(src)
	m.copyTable(src)
	m.verify()
}

// Move transfers the contents of m to a new Map and leaves m empty with a
// single bucket. The new map takes over m's memory strategy.
func (m *Map[K, V]) Move() *Map[K, V] {
	m.lazyInit()
	n := &Map[K, V]{}
	n.MoveFrom(m)
	return n
}

// MoveWith transfers the contents of m to a new Map whose entry array comes
// from mem, re-materializing every entry there, and leaves m empty with a
// single bucket. A nil mem selects HeapMemory.
func (m *Map[K, V]) MoveWith(mem Memory[Entry[K, V]]) *Map[K, V] {
	n := m.CloneWith(mem)
	m.Release()
	return n
}

// MoveFrom releases m's table and takes over the table, configuration and
// memory strategy of src, leaving src empty with a single bucket. A nil src
// leaves m unchanged.
func (m *Map[K, V]) MoveFrom(src *Map[K, V]) {
	if src == nil || src == m {
		return
	}
	src.lazyInit()
	if m.mem != nil {
		m.table.release(m.mem)
	}
	m.adoptConfig(src)
	m.mem = src.mem
	m.table = src.table
	m.length = src.length
	src.resetBase()
	m.verify()
}

// ============================================================================
// Lookup
// ============================================================================

// Find returns a cursor at key's entry, or End if key is absent.
func (m *Map[K, V]) Find(key K) Cursor[K, V] {
	m.lazyInit()
	if idx := m.find(key); idx >= 0 {
		return Cursor[K, V]{m: m, idx: idx}
	}
	return m.End()
}

// Load returns the value for key and whether it was present.
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	if idx := m.find(key); idx >= 0 {
		return m.table.entries[idx].Value, true
	}
	return
}

// At returns the value for key, or an error wrapping ErrKeyNotFound.
func (m *Map[K, V]) At(key K) (V, error) {
	idx := m.find(key)
	if idx < 0 {
		var zero V
		return zero, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	return m.table.entries[idx].Value, nil
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	return m.find(key) >= 0
}

// Count returns 1 if key is present and 0 otherwise.
func (m *Map[K, V]) Count(key K) int {
	if m.find(key) >= 0 {
		return 1
	}
	return 0
}

// Bucket returns the slot that holds key, or an error wrapping
// ErrKeyNotFound. It reports where key lives, which may differ from its home
// slot hash(key) mod BucketCount() after collisions.
func (m *Map[K, V]) Bucket(key K) (int, error) {
	idx := m.find(key)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	return idx, nil
}

// Equal reports whether m and other hold the same keys mapped to equal
// values. Bucket counts and slot layout do not matter. Values are compared
// with m's value equality.
func (m *Map[K, V]) Equal(other *Map[K, V]) bool {
	if m == other {
		return true
	}
	if other == nil {
		return m.length == 0
	}
	if m.length != other.length {
		return false
	}
	m.lazyInit()
	t := &m.table
	for i, s := range t.status {
		if s != slotOccupied {
			continue
		}
		e := &t.entries[i]
		j := other.find(e.Key)
		if j < 0 || !m.valEqual(e.Value, other.table.entries[j].Value) {
			return false
		}
	}
	return true
}

// String returns the map in the form map[k1:v1 k2:v2] in slot order.
func (m *Map[K, V]) String() string {
	var sb strings.Builder
	sb.WriteString("map[")
	first := true
	for k, v := range m.All() {
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		fmt.Fprintf(&sb, "%v:%v", k, v)
	}
	sb.WriteByte(']')
	return sb.String()
}
