package oamap

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// ============================================================================
// Test Data
// ============================================================================

var (
	testDataSmall [8]string
	testData      [128]string
	testDataLarge [128 << 10]string

	testDataIntSmall [8]int
	testDataInt      [128]int
	testDataIntLarge [128 << 10]int
)

func init() {
	for i := range testDataSmall {
		testDataSmall[i] = fmt.Sprintf("%b", i)
	}
	for i := range testData {
		testData[i] = fmt.Sprintf("%b", i)
	}
	for i := range testDataLarge {
		testDataLarge[i] = fmt.Sprintf("%b", i)
	}

	for i := range testDataIntSmall {
		testDataIntSmall[i] = i
	}
	for i := range testDataInt {
		testDataInt[i] = i
	}
	for i := range testDataIntLarge {
		testDataIntLarge[i] = i
	}
}

// NewBadMap creates a Map whose hash function sends every key to slot 0.
// Everything should still work as expected.
func NewBadMap[K comparable, V any](options ...func(*MapConfig)) *Map[K, V] {
	return New[K, V](append(options, WithKeyHasherUnsafe(
		func(unsafe.Pointer, uintptr) uintptr {
			return 0
		},
	))...)
}

// withKeyOrder hashes int keys to themselves so slot order follows key
// order while keys stay below the bucket count.
func withKeyOrder() func(*MapConfig) {
	return WithKeyHasher(func(k int, _ uintptr) uintptr { return uintptr(k) })
}

// NewTruncMap creates a Map whose hash keeps only the low four bits of the
// built-in hash, so keys collide in small groups.
func NewTruncMap[K comparable, V any](options ...func(*MapConfig)) *Map[K, V] {
	hasher := GetBuiltInHasher[K]()
	return New[K, V](append(options, WithKeyHasherUnsafe(
		func(ptr unsafe.Pointer, seed uintptr) uintptr {
			return hasher(ptr, seed) & (uintptr(1)<<4 - 1)
		},
	))...)
}

func mustValid[K comparable, V any](t *testing.T, m *Map[K, V]) {
	t.Helper()
	if err := m.checkInvariants(); err != nil {
		t.Fatal(err)
	}
}

func expectPresentMap[K comparable, V comparable](
	t *testing.T,
	key K,
	want V,
) func(got V, ok bool) {
	t.Helper()
	return func(got V, ok bool) {
		t.Helper()

		if !ok {
			t.Errorf("expected key %v to be present in map", key)
		}
		if ok && got != want {
			t.Errorf("expected key %v to have value %v, got %v", key, want, got)
		}
	}
}

func expectMissingMap[K comparable, V comparable](
	t *testing.T,
	key K,
) func(got V, ok bool) {
	t.Helper()
	return func(got V, ok bool) {
		t.Helper()

		if ok {
			t.Errorf("expected key %v to be missing from map, got value %v", key, got)
		}
		if !ok && got != *new(V) {
			t.Errorf("expected missing key %v to be zero value; got %v", key, got)
		}
	}
}

func expectInserted[K comparable, V any](
	t *testing.T,
	key K,
	want bool,
) func(c Cursor[K, V], inserted bool) {
	t.Helper()
	return func(c Cursor[K, V], inserted bool) {
		t.Helper()

		if inserted != want {
			t.Errorf("key %v: inserted = %v, want %v", key, inserted, want)
		}
		e, err := c.Entry()
		if err != nil {
			t.Fatalf("key %v: cursor after insert: %v", key, err)
		}
		if e.Key != key {
			t.Errorf("cursor after insert of %v points at %v", key, e.Key)
		}
	}
}

func TestMap(t *testing.T) {
	testMap(t, func() *Map[string, int] {
		return &Map[string, int]{}
	})
}

func TestMapBadHash(t *testing.T) {
	testMap(t, func() *Map[string, int] {
		return NewBadMap[string, int]()
	})
}

func TestMapTruncHash(t *testing.T) {
	// near collisions, where only the last few bits of the hash differ
	testMap(t, func() *Map[string, int] {
		return NewTruncMap[string, int]()
	})
}

func TestMapFullLoad(t *testing.T) {
	testMap(t, func() *Map[string, int] {
		return New[string, int](WithMaxLoadFactor(1))
	})
}

func TestMapPoolMemory(t *testing.T) {
	pool := NewPoolMemory[Entry[string, int]]()
	testMap(t, func() *Map[string, int] {
		return New[string, int](WithMemory(pool))
	})
}

func testMap(t *testing.T, newMap func() *Map[string, int]) {
	t.Run("LoadEmpty", func(t *testing.T) {
		m := newMap()

		for _, s := range testData {
			expectMissingMap[string, int](t, s)(m.Load(s))
		}
	})
	t.Run("Insert", func(t *testing.T) {
		m := newMap()

		for i, s := range testData {
			expectMissingMap[string, int](t, s)(m.Load(s))
			expectInserted[string, int](t, s, true)(m.Insert(s, i))
			expectPresentMap(t, s, i)(m.Load(s))
			expectInserted[string, int](t, s, false)(m.Insert(s, 0))
		}
		for i, s := range testData {
			expectPresentMap(t, s, i)(m.Load(s))
		}
		if m.Size() != len(testData) {
			t.Fatalf("Size() = %d, want %d", m.Size(), len(testData))
		}
		mustValid(t, m)
	})
	t.Run("InsertOrAssign", func(t *testing.T) {
		m := newMap()

		for i, s := range testData {
			expectInserted[string, int](t, s, true)(m.InsertOrAssign(s, i))
		}
		for i, s := range testData {
			expectInserted[string, int](t, s, false)(m.InsertOrAssign(s, -i))
			expectPresentMap(t, s, -i)(m.Load(s))
		}
		mustValid(t, m)
	})
	t.Run("EraseKey", func(t *testing.T) {
		m := newMap()

		for range 3 {
			for i, s := range testData {
				m.Insert(s, i)
			}
			for i, s := range testData {
				expectPresentMap(t, s, i)(m.Load(s))
				if n := m.EraseKey(s); n != 1 {
					t.Fatalf("EraseKey(%q) = %d, want 1", s, n)
				}
				if n := m.EraseKey(s); n != 0 {
					t.Fatalf("second EraseKey(%q) = %d, want 0", s, n)
				}
				expectMissingMap[string, int](t, s)(m.Load(s))
			}
			if !m.Empty() {
				t.Fatalf("map not empty: %v", m)
			}
			mustValid(t, m)
		}
	})
	t.Run("EraseSubset", func(t *testing.T) {
		m := newMap()

		for i, s := range testData {
			m.Insert(s, i)
		}
		erased := 0
		for i, s := range testData {
			if i%3 == 0 {
				erased += m.EraseKey(s)
			}
		}
		if want := len(testData) - erased; m.Size() != want {
			t.Fatalf("Size() = %d, want %d", m.Size(), want)
		}
		for i, s := range testData {
			if i%3 == 0 {
				expectMissingMap[string, int](t, s)(m.Load(s))
			} else {
				expectPresentMap(t, s, i)(m.Load(s))
			}
		}
		mustValid(t, m)
	})
	t.Run("Reinsert", func(t *testing.T) {
		m := newMap()

		for i, s := range testData {
			m.Insert(s, i)
		}
		for i, s := range testData {
			if i%2 == 0 {
				m.EraseKey(s)
			}
		}
		for i, s := range testData {
			if i%2 == 0 {
				expectInserted[string, int](t, s, true)(m.Insert(s, i*10))
			}
		}
		for i, s := range testData {
			want := i
			if i%2 == 0 {
				want = i * 10
			}
			expectPresentMap(t, s, want)(m.Load(s))
		}
		mustValid(t, m)
	})
	t.Run("Index", func(t *testing.T) {
		m := newMap()

		for i, s := range testData {
			*m.Index(s) += i
			*m.Index(s) += i
		}
		for i, s := range testData {
			expectPresentMap(t, s, 2*i)(m.Load(s))
		}
		mustValid(t, m)
	})
	t.Run("All", func(t *testing.T) {
		m := newMap()

		want := make(map[string]int)
		for i, s := range testData {
			m.Insert(s, i)
			want[s] = i
		}
		got := maps.Collect(m.All())
		if !maps.Equal(got, want) {
			t.Fatalf("All() = %v, want %v", got, want)
		}
	})
	t.Run("Clear", func(t *testing.T) {
		m := newMap()

		for i, s := range testData {
			m.Insert(s, i)
		}
		buckets := m.BucketCount()
		m.Clear()
		for _, s := range testData {
			expectMissingMap[string, int](t, s)(m.Load(s))
		}
		if m.BucketCount() != buckets {
			t.Fatalf("Clear changed bucket count from %d to %d", buckets, m.BucketCount())
		}
		mustValid(t, m)
	})
	t.Run("LoadFactorBound", func(t *testing.T) {
		m := newMap()

		for i, s := range testData {
			m.Insert(s, i)
			if m.LoadFactor() > m.MaxLoadFactor() {
				t.Fatalf("after %d inserts load factor %v > %v",
					i+1, m.LoadFactor(), m.MaxLoadFactor())
			}
		}
	})
}

// ============================================================================
// Scenarios
// ============================================================================

func TestMap_CapacityOne(t *testing.T) {
	m := New[int, int](WithCapacity(1), WithMaxLoadFactor(1))

	m.Insert(1, 2)
	if m.Size() != 1 || m.BucketCount() != 1 || m.LoadFactor() != 1.0 {
		t.Fatalf("size=%d buckets=%d load=%v, want 1 1 1.0",
			m.Size(), m.BucketCount(), m.LoadFactor())
	}
	m.Insert(2, 3)
	if m.BucketCount() != 2 {
		t.Fatalf("BucketCount() = %d after growth, want 2", m.BucketCount())
	}
	m.EraseKey(1)
	if m.Contains(1) {
		t.Fatal("key 1 still present after erase")
	}
	if m.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", m.Size())
	}
	expectPresentMap(t, 2, 3)(m.Load(2))
	mustValid(t, m)
}

func TestMap_DefaultCapacity(t *testing.T) {
	var zero Map[int, int]
	for _, m := range []*Map[int, int]{New[int, int](), &zero} {
		if m.BucketCount() != 1 || !m.Empty() || m.MaxLoadFactor() != defaultMaxLoadFactor {
			t.Fatalf("buckets=%d empty=%v mlf=%v",
				m.BucketCount(), m.Empty(), m.MaxLoadFactor())
		}
	}
	if got := New[int, int](WithCapacity(-5)).BucketCount(); got != 1 {
		t.Fatalf("WithCapacity(-5) gave %d buckets, want 1", got)
	}
	if got := New[int, int](WithCapacity(33)).BucketCount(); got != 33 {
		t.Fatalf("WithCapacity(33) gave %d buckets, want 33", got)
	}
}

func TestMap_Merge(t *testing.T) {
	dst := NewOf([]Entry[int, string]{{0, "a"}, {2, "c"}})
	src := NewOf([]Entry[int, string]{{0, "a"}, {1, "b"}})

	dst.Merge(src)

	want := map[int]string{0: "a", 1: "b", 2: "c"}
	if got := maps.Collect(dst.All()); !maps.Equal(got, want) {
		t.Fatalf("destination = %v, want %v", got, want)
	}
	if got := maps.Collect(src.All()); !maps.Equal(got, map[int]string{0: "a"}) {
		t.Fatalf("source = %v, want map[0:a]", got)
	}
	mustValid(t, dst)
	mustValid(t, src)

	dst.Merge(dst)
	dst.Merge(nil)
	if dst.Size() != 3 {
		t.Fatalf("self merge changed size to %d", dst.Size())
	}
}

func TestMap_MergeKeepsDuplicateValue(t *testing.T) {
	dst := NewOf([]Entry[string, int]{{"x", 1}})
	src := NewOf([]Entry[string, int]{{"x", 2}, {"y", 3}})
	dst.Merge(src)
	expectPresentMap(t, "x", 1)(dst.Load("x"))
	expectPresentMap(t, "x", 2)(src.Load("x"))
	expectPresentMap(t, "y", 3)(dst.Load("y"))
	expectMissingMap[string, int](t, "y")(src.Load("y"))
}

func TestMap_AtMissing(t *testing.T) {
	var empty Map[string, int]
	if _, err := empty.At("a"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("At on empty map: %v, want ErrKeyNotFound", err)
	}

	m := NewOf([]Entry[string, int]{{"a", 1}})
	if _, err := m.At("b"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("At on absent key: %v, want ErrKeyNotFound", err)
	}
	if v, err := m.At("a"); err != nil || v != 1 {
		t.Fatalf("At(a) = %d, %v", v, err)
	}
	if _, err := m.At("b"); err == nil || !strings.Contains(err.Error(), "b") {
		t.Fatalf("error does not name the key: %v", err)
	}
	if m.Size() != 1 {
		t.Fatal("At inserted a key")
	}
}

func TestMap_TombstoneOnProbeChain(t *testing.T) {
	m := New[int, string](
		WithKeyHasher(func(int, uintptr) uintptr { return 0 }),
		WithCapacity(8),
	)
	for i := range 4 {
		m.Insert(i, fmt.Sprint(i))
	}
	// slots 0..3 hold keys 0..3; erasing 1 leaves a tombstone between them
	m.EraseKey(1)
	if _, tombs := m.table.count(); tombs != 1 {
		t.Fatalf("tombstones = %d, want 1", tombs)
	}
	expectPresentMap(t, 3, "3")(m.Load(3))

	c, inserted := m.Insert(1, "one")
	if !inserted {
		t.Fatal("reinsert reported not inserted")
	}
	if c.Index() != 1 {
		t.Fatalf("reinsert went to slot %d, want the tombstone at 1", c.Index())
	}
	expectPresentMap(t, 1, "one")(m.Load(1))

	// a new key reuses the first tombstone rather than extending the chain
	m.EraseKey(0)
	c, _ = m.Insert(9, "nine")
	if c.Index() != 0 {
		t.Fatalf("new key went to slot %d, want 0", c.Index())
	}
	for _, k := range []int{1, 2, 3, 9} {
		if !m.Contains(k) {
			t.Fatalf("key %d lost", k)
		}
	}
	mustValid(t, m)
}

func TestMap_FullTableWrap(t *testing.T) {
	m := New[int, int](WithCapacity(4), WithMaxLoadFactor(1))
	for i := range 4 {
		m.Insert(i, i)
	}
	if m.BucketCount() != 4 {
		t.Fatalf("BucketCount() = %d, want 4", m.BucketCount())
	}
	// every slot occupied: the probe wraps and reports full
	if idx, found := m.probe(&m.table, 100); found || idx != m.table.capacity() {
		t.Fatalf("probe on full table = (%d, %v), want (%d, false)", idx, found, m.table.capacity())
	}
	m.Insert(4, 4)
	if m.BucketCount() < 8 {
		t.Fatalf("BucketCount() = %d after overflow, want >= 8", m.BucketCount())
	}
	for i := range 5 {
		expectPresentMap(t, i, i)(m.Load(i))
	}
	mustValid(t, m)
}

func TestMap_TombstonesOnlyTable(t *testing.T) {
	m := NewBadMap[int, int](WithCapacity(4), WithMaxLoadFactor(1))
	for i := range 4 {
		m.Insert(i, i)
	}
	for i := range 4 {
		m.EraseKey(i)
	}
	// no empty slot anywhere: lookups must still terminate
	if m.Contains(7) {
		t.Fatal("found a key in a table of tombstones")
	}
	m.Insert(7, 7)
	expectPresentMap(t, 7, 7)(m.Load(7))
	mustValid(t, m)
}

func TestMap_IdempotentInsert(t *testing.T) {
	m := New[string, int]()
	c1, ok := m.Insert("k", 1)
	if !ok {
		t.Fatal("first insert not inserted")
	}
	c2, ok := m.Insert("k", 2)
	if ok {
		t.Fatal("second insert reported inserted")
	}
	if !c1.Equal(c2) {
		t.Fatal("cursors of both inserts differ")
	}
	expectPresentMap(t, "k", 1)(m.Load("k"))

	c3, ok := m.InsertEntry(Entry[string, int]{"k", 3})
	if ok || !c3.Equal(c1) {
		t.Fatal("InsertEntry of existing key")
	}
}

func TestMap_TryEmplace(t *testing.T) {
	m := New[string, []int]()
	calls := 0
	ctor := func() []int {
		calls++
		return []int{1, 2, 3}
	}
	if _, ok := m.TryEmplace("a", ctor); !ok {
		t.Fatal("TryEmplace on absent key not inserted")
	}
	if _, ok := m.TryEmplace("a", ctor); ok {
		t.Fatal("TryEmplace on present key inserted")
	}
	if calls != 1 {
		t.Fatalf("constructor called %d times, want 1", calls)
	}
	c, ok := m.TryEmplace("b", nil)
	if !ok {
		t.Fatal("TryEmplace with nil constructor not inserted")
	}
	if e, _ := c.Entry(); e.Value != nil {
		t.Fatalf("nil constructor stored %v", e.Value)
	}
}

func TestMap_RandomOps(t *testing.T) {
	for _, name := range []string{"default", "bad", "trunc", "sparse"} {
		t.Run(name, func(t *testing.T) {
			var m *Map[int, int]
			switch name {
			case "default":
				m = New[int, int]()
			case "bad":
				m = NewBadMap[int, int]()
			case "trunc":
				m = NewTruncMap[int, int]()
			case "sparse":
				m = New[int, int](WithMaxLoadFactor(0.3))
			}
			ref := make(map[int]int)
			r := rand.New(rand.NewPCG(1, 2))
			n := 5000
			if name == "bad" {
				n = 1000
			}
			for i := range n {
				k := r.IntN(200)
				switch r.IntN(4) {
				case 0:
					_, ins := m.Insert(k, i)
					_, had := ref[k]
					if ins == had {
						t.Fatalf("op %d: Insert(%d) inserted=%v, present=%v", i, k, ins, had)
					}
					if !had {
						ref[k] = i
					}
				case 1:
					m.InsertOrAssign(k, i)
					ref[k] = i
				case 2:
					_, had := ref[k]
					if got := m.EraseKey(k); (got == 1) != had {
						t.Fatalf("op %d: EraseKey(%d) = %d, present=%v", i, k, got, had)
					}
					delete(ref, k)
				case 3:
					v, ok := m.Load(k)
					want, had := ref[k]
					if ok != had || v != want {
						t.Fatalf("op %d: Load(%d) = %d, %v; want %d, %v", i, k, v, ok, want, had)
					}
				}
				if m.Size() != len(ref) {
					t.Fatalf("op %d: Size() = %d, want %d", i, m.Size(), len(ref))
				}
				if m.LoadFactor() > m.MaxLoadFactor() {
					t.Fatalf("op %d: load factor %v > %v", i, m.LoadFactor(), m.MaxLoadFactor())
				}
			}
			mustValid(t, m)
			if got := maps.Collect(m.All()); !maps.Equal(got, ref) {
				t.Fatalf("contents diverged:\n got %v\nwant %v", got, ref)
			}
		})
	}
}

// ============================================================================
// Hash policy
// ============================================================================

func TestMap_SetMaxLoadFactor(t *testing.T) {
	m := New[int, int]()
	for i := range 30 {
		m.Insert(i, i)
	}
	for _, z := range []float64{0, -0.1, 1.0001, math.NaN(), math.Inf(1)} {
		before := m.MaxLoadFactor()
		buckets := m.BucketCount()
		if err := m.SetMaxLoadFactor(z); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("SetMaxLoadFactor(%v) = %v, want ErrInvalidArgument", z, err)
		}
		if m.MaxLoadFactor() != before || m.BucketCount() != buckets {
			t.Fatalf("failed SetMaxLoadFactor(%v) changed the map", z)
		}
	}
	if err := m.SetMaxLoadFactor(0.25); err != nil {
		t.Fatal(err)
	}
	if m.MaxLoadFactor() != 0.25 {
		t.Fatalf("MaxLoadFactor() = %v, want 0.25", m.MaxLoadFactor())
	}
	if m.LoadFactor() > 0.25 {
		t.Fatalf("lowering the bound left load factor at %v", m.LoadFactor())
	}
	if err := m.SetMaxLoadFactor(1); err != nil {
		t.Fatal(err)
	}
	for i := range 30 {
		expectPresentMap(t, i, i)(m.Load(i))
	}
	mustValid(t, m)
}

func TestMap_WithMaxLoadFactorPanics(t *testing.T) {
	for _, z := range []float64{0, 1.5, -1} {
		func() {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok || !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("WithMaxLoadFactor(%v) panic = %v, want ErrInvalidArgument", z, r)
				}
			}()
			New[int, int](WithMaxLoadFactor(z))
		}()
	}
}

func TestMap_RehashReserve(t *testing.T) {
	m := New[int, int]()
	for i := range 100 {
		m.Insert(i, i)
	}
	for i := range 50 {
		m.EraseKey(i)
	}
	if _, tombs := m.table.count(); tombs == 0 {
		t.Fatal("expected tombstones before rehash")
	}

	m.Rehash(500)
	if m.BucketCount() != 500 {
		t.Fatalf("Rehash(500) gave %d buckets", m.BucketCount())
	}
	if _, tombs := m.table.count(); tombs != 0 {
		t.Fatalf("%d tombstones survived rehash", tombs)
	}

	// Rehash never goes below what the entries need
	m.Rehash(0)
	if want := m.minBuckets(50); m.BucketCount() != want {
		t.Fatalf("Rehash(0) gave %d buckets, want %d", m.BucketCount(), want)
	}
	if m.LoadFactor() > m.MaxLoadFactor() {
		t.Fatalf("load factor %v > %v", m.LoadFactor(), m.MaxLoadFactor())
	}

	m.Reserve(1000)
	want := int(math.Ceil(1000 / m.MaxLoadFactor()))
	if m.BucketCount() != want {
		t.Fatalf("Reserve(1000) gave %d buckets, want %d", m.BucketCount(), want)
	}
	buckets := m.BucketCount()
	for i := range 1000 {
		m.Insert(i, i)
	}
	if m.BucketCount() != buckets {
		t.Fatalf("inserting the reserved count grew the map to %d buckets", m.BucketCount())
	}
	mustValid(t, m)
}

func TestMap_Growth(t *testing.T) {
	m := New[int, int](WithCapacity(10))
	prev := m.BucketCount()
	for i := range 1000 {
		m.Insert(i, i)
		if b := m.BucketCount(); b != prev {
			if b < 2*prev {
				t.Fatalf("grew from %d to %d buckets, want at least double", prev, b)
			}
			prev = b
		}
	}
}

func TestMap_Bucket(t *testing.T) {
	m := New[string, int]()
	for i, s := range testData {
		m.Insert(s, i)
	}
	for _, s := range testData {
		b, err := m.Bucket(s)
		if err != nil {
			t.Fatal(err)
		}
		if e, _ := (Cursor[string, int]{m: m, idx: b}).Entry(); e.Key != s {
			t.Fatalf("Bucket(%q) = %d holding %q", s, b, e.Key)
		}
	}
	if _, err := m.Bucket("missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Bucket(missing) = %v, want ErrKeyNotFound", err)
	}
}

func TestMap_Observers(t *testing.T) {
	m := New[string, int]()
	h := m.HashFunction()
	if h("abc") != h("abc") {
		t.Fatal("hash function is not deterministic")
	}
	if !m.KeyEqual()("a", "a") || m.KeyEqual()("a", "b") {
		t.Fatal("default key equality")
	}
	if _, ok := m.Memory().(HeapMemory[Entry[string, int]]); !ok {
		t.Fatalf("default memory is %T", m.Memory())
	}
	if m.MaxSize() <= 0 {
		t.Fatalf("MaxSize() = %d", m.MaxSize())
	}

	fold := New[string, int](
		WithKeyHasher(func(k string, seed uintptr) uintptr {
			return uintptr(xxhash.Sum64String(strings.ToLower(k))) ^ seed
		}),
		WithKeyEqual(strings.EqualFold),
	)
	fold.Insert("Key", 1)
	if !fold.Contains("KEY") {
		t.Fatal("custom key equality not used")
	}
	if !fold.KeyEqual()("a", "A") {
		t.Fatal("KeyEqual does not return the configured predicate")
	}
}

// ============================================================================
// Copy, move and equality
// ============================================================================

func TestMap_Equal(t *testing.T) {
	a := New[int, string]()
	b := New[int, string](WithCapacity(64), WithMaxLoadFactor(0.5))
	for i := range 20 {
		a.Insert(i, fmt.Sprint(i))
		b.Insert(19-i, fmt.Sprint(19-i))
	}
	if a.BucketCount() == b.BucketCount() {
		t.Fatal("test wants different layouts")
	}
	if !a.Equal(b) || !b.Equal(a) {
		t.Fatal("maps with the same contents differ")
	}
	b.InsertOrAssign(3, "x")
	if a.Equal(b) {
		t.Fatal("maps with different values compare equal")
	}
	b.EraseKey(3)
	if a.Equal(b) {
		t.Fatal("maps with different sizes compare equal")
	}
	b.Insert(100, "3")
	if a.Equal(b) {
		t.Fatal("maps with different keys compare equal")
	}

	var z1, z2 Map[int, string]
	if !z1.Equal(&z2) || !z1.Equal(nil) {
		t.Fatal("empty maps differ")
	}
}

type profile struct {
	Name string
	Tags []string
}

func (p *profile) EqualFunc(other profile) bool {
	return p.Name == other.Name && slices.Equal(p.Tags, other.Tags)
}

type record struct {
	ID   int
	Data []byte
}

func TestMap_EqualValueEquality(t *testing.T) {
	a := New[int, profile]()
	b := New[int, profile]()
	a.Insert(1, profile{"a", []string{"x"}})
	b.Insert(1, profile{"a", []string{"x"}})
	if !a.Equal(b) {
		t.Fatal("IEqualFunc not used")
	}

	// reflect.DeepEqual fallback
	c := NewOf([]Entry[int, record]{{1, record{1, []byte("z")}}})
	d := NewOf([]Entry[int, record]{{1, record{1, []byte("z")}}})
	if !c.Equal(d) {
		t.Fatal("deep equal fallback not used")
	}

	byID := WithValueEqual(func(x, y record) bool { return x.ID == y.ID })
	e := NewOf([]Entry[int, record]{{1, record{1, []byte("a")}}}, byID)
	f := NewOf([]Entry[int, record]{{1, record{1, []byte("b")}}}, byID)
	if !e.Equal(f) {
		t.Fatal("WithValueEqual not used")
	}
}

func TestMap_CloneIndependent(t *testing.T) {
	m := New[string, int]()
	for i, s := range testData {
		m.Insert(s, i)
	}
	m.EraseKey(testData[0])

	c := m.Clone()
	if !c.Equal(m) || c.BucketCount() != m.BucketCount() {
		t.Fatal("clone differs")
	}
	c.InsertOrAssign(testData[1], -1)
	c.EraseKey(testData[2])
	expectPresentMap(t, testData[1], 1)(m.Load(testData[1]))
	expectPresentMap(t, testData[2], 2)(m.Load(testData[2]))
	mustValid(t, c)
	mustValid(t, m)

	pool := NewPoolMemory[Entry[string, int]]()
	p := m.CloneWith(pool)
	if p.Memory() != Memory[Entry[string, int]](pool) {
		t.Fatal("CloneWith ignored the memory strategy")
	}
	if !p.Equal(m) {
		t.Fatal("CloneWith differs")
	}
}

func TestMap_CopyFrom(t *testing.T) {
	src := NewOf([]Entry[int, int]{{1, 1}, {2, 2}}, WithMaxLoadFactor(0.5))
	pool := NewPoolMemory[Entry[int, int]]()
	dst := New[int, int](WithMemory(pool))
	dst.Insert(9, 9)

	dst.CopyFrom(src)
	if !dst.Equal(src) || dst.Contains(9) {
		t.Fatalf("CopyFrom gave %v", dst)
	}
	if dst.MaxLoadFactor() != 0.5 {
		t.Fatalf("CopyFrom did not copy the max load factor")
	}
	if dst.Memory() != Memory[Entry[int, int]](pool) {
		t.Fatal("CopyFrom replaced the memory strategy")
	}
	dst.CopyFrom(dst)
	mustValid(t, dst)
}

func TestMap_Move(t *testing.T) {
	m := New[string, int]()
	for i, s := range testDataSmall {
		m.Insert(s, i)
	}
	want := maps.Collect(m.All())

	n := m.Move()
	if got := maps.Collect(n.All()); !maps.Equal(got, want) {
		t.Fatalf("moved map = %v, want %v", got, want)
	}
	if !m.Empty() || m.BucketCount() != 1 {
		t.Fatalf("moved-from map has %d entries in %d buckets", m.Size(), m.BucketCount())
	}
	m.Insert("again", 1)
	mustValid(t, m)

	var o Map[string, int]
	o.MoveFrom(n)
	if got := maps.Collect(o.All()); !maps.Equal(got, want) {
		t.Fatalf("MoveFrom = %v, want %v", got, want)
	}
	if !n.Empty() {
		t.Fatal("MoveFrom left entries behind")
	}

	pool := NewPoolMemory[Entry[string, int]]()
	p := o.MoveWith(pool)
	if got := maps.Collect(p.All()); !maps.Equal(got, want) {
		t.Fatalf("MoveWith = %v, want %v", got, want)
	}
	if p.Memory() != Memory[Entry[string, int]](pool) || !o.Empty() {
		t.Fatal("MoveWith")
	}
	mustValid(t, p)
}

func TestMap_Swap(t *testing.T) {
	a := NewOf([]Entry[int, int]{{1, 1}})
	b := NewOf([]Entry[int, int]{{2, 2}, {3, 3}}, WithMaxLoadFactor(0.5))
	a.Swap(b)
	if a.Size() != 2 || b.Size() != 1 || a.MaxLoadFactor() != 0.5 {
		t.Fatal("Swap did not exchange contents")
	}
	expectPresentMap(t, 3, 3)(a.Load(3))
	expectPresentMap(t, 1, 1)(b.Load(1))
	mustValid(t, a)
	mustValid(t, b)
}

func TestMap_NilOther(t *testing.T) {
	m := NewOf([]Entry[int, int]{{1, 1}, {2, 2}})
	m.Swap(nil)
	m.Merge(nil)
	m.CopyFrom(nil)
	m.MoveFrom(nil)
	if m.Size() != 2 {
		t.Fatalf("Size() = %d after nil arguments, want 2", m.Size())
	}
	expectPresentMap(t, 1, 1)(m.Load(1))
	expectPresentMap(t, 2, 2)(m.Load(2))
	mustValid(t, m)
}

func TestMap_ReleaseAndReuse(t *testing.T) {
	pool := NewPoolMemory[Entry[int, int]]()
	m := New[int, int](WithMemory(pool))
	for i := range 100 {
		m.Insert(i, i)
	}
	m.Release()
	if !m.Empty() || m.BucketCount() != 1 {
		t.Fatal("Release did not reset the map")
	}
	for i := range 100 {
		m.Insert(i, i+1)
	}
	for i := range 100 {
		expectPresentMap(t, i, i+1)(m.Load(i))
	}
	if hits, _ := pool.Stats(); hits == 0 {
		t.Fatal("released tables were not reused")
	}
	mustValid(t, m)
}

func TestMap_Constructors(t *testing.T) {
	m := NewFrom(maps.All(map[string]int{"a": 1, "b": 2}))
	if m.Size() != 2 {
		t.Fatalf("NewFrom size = %d", m.Size())
	}
	entries := make([]Entry[int, int], 1000)
	for i := range entries {
		entries[i] = Entry[int, int]{i, i}
	}
	entries = append(entries, Entry[int, int]{0, 42})
	n := NewOf(entries)
	if n.Size() != 1000 {
		t.Fatalf("NewOf size = %d", n.Size())
	}
	expectPresentMap(t, 0, 0)(n.Load(0))

	o := New[int, int]()
	o.InsertEntries(entries[:10]...)
	o.InsertSeq(n.All())
	if !o.Equal(n) {
		t.Fatal("InsertSeq")
	}
}

func TestMap_String(t *testing.T) {
	m := New[int, string](WithCapacity(4), withKeyOrder())
	m.Insert(1, "a")
	m.Insert(2, "b")
	if got := m.String(); got != "map[1:a 2:b]" {
		t.Fatalf("String() = %q", got)
	}
	if got := New[int, int]().String(); got != "map[]" {
		t.Fatalf("String() of empty map = %q", got)
	}
}

// ============================================================================
// Key types
// ============================================================================

type point struct {
	X, Y int32
}

type userID struct {
	ID     int64
	Tenant string
}

func (u *userID) HashFunc(seed uintptr) uintptr {
	return uintptr(u.ID) ^ seed
}

type myString string

func TestMap_KeyTypes(t *testing.T) {
	t.Run("struct", func(t *testing.T) {
		m := New[point, int]()
		for i := range 100 {
			m.Insert(point{int32(i), int32(-i)}, i)
		}
		for i := range 100 {
			expectPresentMap(t, point{int32(i), int32(-i)}, i)(m.Load(point{int32(i), int32(-i)}))
		}
		mustValid(t, m)
	})
	t.Run("IHashFunc", func(t *testing.T) {
		m := New[userID, int]()
		m.Insert(userID{1, "a"}, 1)
		m.Insert(userID{1, "b"}, 2)
		expectPresentMap(t, userID{1, "b"}, 2)(m.Load(userID{1, "b"}))
		want := m.HashFunction()(userID{7, "x"})
		if got := uintptr(7) ^ m.seed; want != got {
			t.Fatalf("IHashFunc not used: %x != %x", want, got)
		}
	})
	t.Run("named string", func(t *testing.T) {
		m := New[myString, int]()
		m.Insert("a", 1)
		expectPresentMap(t, myString("a"), 1)(m.Load("a"))
	})
	t.Run("interface", func(t *testing.T) {
		m := New[any, int]()
		m.Insert(1, 1)
		m.Insert("1", 2)
		m.Insert(1.0, 3)
		if m.Size() != 3 {
			t.Fatalf("Size() = %d", m.Size())
		}
		expectPresentMap[any](t, "1", 2)(m.Load("1"))
	})
	t.Run("float", func(t *testing.T) {
		m := New[float64, int](WithBuiltInHasher[float64]())
		m.Insert(0.5, 1)
		m.Insert(math.Copysign(0, -1), 2)
		expectPresentMap(t, 0.0, 2)(m.Load(0.0))
	})
	t.Run("empty string", func(t *testing.T) {
		m := New[string, int]()
		m.Insert("", 7)
		expectPresentMap(t, "", 7)(m.Load(""))
	})
}

func TestMap_OptionTypeMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("mismatched WithKeyEqual did not panic")
		}
	}()
	New[int, int](WithKeyEqual(strings.EqualFold))
}
