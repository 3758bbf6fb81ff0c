package oamap

import (
	"fmt"
	"log/slog"
	"unsafe"
)

// ============================================================================
// Configuration
// ============================================================================

// MapConfig defines configurable options for Map initialization.
// Options are applied in order by New, NewFrom and NewOf; a later option
// overrides an earlier one of the same kind.
type MapConfig struct {
	// keyHash specifies a custom hash function for keys.
	// If nil, the IHashFunc implementation of the key type or the built-in
	// hash function will be used.
	keyHash HashFunc

	// keyEqual holds a func(K, K) bool. If nil, keys compare with ==.
	keyEqual any

	// valEqual holds a func(V, V) bool used by Map.Equal.
	// If nil, IEqualFunc, == or reflect.DeepEqual is used, in that order.
	valEqual any

	// memory holds a Memory[Entry[K, V]]. If nil, HeapMemory is used.
	memory any

	// capacity is the initial bucket count. Values below 1 mean 1.
	capacity int

	// maxLoadFactor bounds size/bucket count; see WithMaxLoadFactor.
	maxLoadFactor    float64
	maxLoadFactorSet bool

	// logger receives debug-level rehash events. Nil disables logging.
	logger *slog.Logger
}

// WithCapacity configures the initial bucket count of a new Map.
// If cap is zero or negative, the map starts with a single bucket.
//
// Unlike Reserve, the value is a number of slots, not of entries: a map
// created WithCapacity(16) holds at most 16*MaxLoadFactor() entries before
// it grows.
func WithCapacity(cap int) func(*MapConfig) {
	return func(c *MapConfig) {
		c.capacity = cap
	}
}

// WithMaxLoadFactor sets the maximum ratio of entries to buckets.
// The default is 0.75. Construction panics with an error wrapping
// ErrInvalidArgument if z is outside (0, 1]; use Map.SetMaxLoadFactor to
// change the bound with an error return instead.
func WithMaxLoadFactor(z float64) func(*MapConfig) {
	return func(c *MapConfig) {
		c.maxLoadFactor = z
		c.maxLoadFactorSet = true
	}
}

// WithKeyHasher sets a custom key hashing function for the map.
// The function receives the key and the map's random seed; it may ignore
// the seed. Keys that compare equal (see WithKeyEqual) must hash equally.
//
// Usage:
//
//	m := New[string, int](WithKeyHasher(func(k string, seed uintptr) uintptr {
//		return uintptr(xxhash.Sum64String(strings.ToLower(k))) ^ seed
//	}))
func WithKeyHasher[K comparable](
	keyHash func(key K, seed uintptr) uintptr,
) func(*MapConfig) {
	return func(c *MapConfig) {
		if keyHash != nil {
			c.keyHash = func(ptr unsafe.Pointer, seed uintptr) uintptr {
				return keyHash(*(*K)(ptr), seed)
			}
		}
	}
}

// WithKeyHasherUnsafe sets a low-level key hashing function that operates
// on a pointer to the key.
//
// Notes:
//   - You must correctly cast unsafe.Pointer to the actual key type
//   - Incorrect pointer operations will cause crashes or memory corruption
func WithKeyHasherUnsafe(hs HashFunc) func(*MapConfig) {
	return func(c *MapConfig) {
		c.keyHash = hs
	}
}

// WithBuiltInHasher selects the runtime's hash function for T, the one Go's
// built-in map uses, instead of the specialised integer and string hashers.
//
// Usage:
//
//	m := New[string, int](WithBuiltInHasher[string]())
func WithBuiltInHasher[T comparable]() func(*MapConfig) {
	return func(c *MapConfig) {
		c.keyHash = GetBuiltInHasher[T]()
	}
}

// GetBuiltInHasher returns the runtime's hash function for T under a fresh
// random seed.
func GetBuiltInHasher[T comparable]() HashFunc {
	return builtInHasher[T]()
}

// WithKeyEqual sets the key equality predicate. It must be consistent with
// the hash function: keys it reports equal must hash to the same value.
//
// Usage:
//
//	m := New[string, int](
//		WithKeyHasher(foldHash),
//		WithKeyEqual(strings.EqualFold),
//	)
func WithKeyEqual[K comparable](keyEqual func(a, b K) bool) func(*MapConfig) {
	return func(c *MapConfig) {
		if keyEqual != nil {
			c.keyEqual = keyEqual
		}
	}
}

// WithValueEqual sets the value equality used by Map.Equal.
// This is required for value types whose equality is not ==, such as
// structs holding slices when reflect.DeepEqual is not the desired
// semantics.
func WithValueEqual[V any](valEqual func(a, b V) bool) func(*MapConfig) {
	return func(c *MapConfig) {
		if valEqual != nil {
			c.valEqual = valEqual
		}
	}
}

// WithMemory sets the storage strategy for the entry array.
//
// Usage:
//
//	pool := NewPoolMemory[Entry[string, int]]()
//	m := New[string, int](WithMemory(pool))
func WithMemory[K comparable, V any](mem Memory[Entry[K, V]]) func(*MapConfig) {
	return func(c *MapConfig) {
		if mem != nil {
			c.memory = mem
		}
	}
}

// WithLogger sets a logger that receives a debug record on every rehash.
func WithLogger(l *slog.Logger) func(*MapConfig) {
	return func(c *MapConfig) {
		c.logger = l
	}
}

// IHashFunc defines a custom hash function interface for key types.
// Key types implementing this interface (on the pointer receiver) provide
// their own hash computation. It takes precedence over the built-in hasher
// but is overridden by an explicit WithKeyHasher.
//
// Usage:
//
//	type UserID struct {
//		ID     int64
//		Tenant string
//	}
//
//	func (u *UserID) HashFunc(seed uintptr) uintptr {
//		return uintptr(u.ID) ^ seed
//	}
type IHashFunc interface {
	HashFunc(seed uintptr) uintptr
}

// IEqualFunc defines a custom equality interface for value types, used by
// Map.Equal. It takes precedence over the default comparison but is
// overridden by WithValueEqual.
//
// Usage:
//
//	type UserProfile struct {
//		Name string
//		Tags []string // slice makes this non-comparable
//	}
//
//	func (u *UserProfile) EqualFunc(other UserProfile) bool {
//		return u.Name == other.Name && slices.Equal(u.Tags, other.Tags)
//	}
type IEqualFunc[T any] interface {
	EqualFunc(other T) bool
}

func parseKeyInterface[K comparable]() (keyHash HashFunc) {
	var k *K
	if _, ok := any(k).(IHashFunc); ok {
		keyHash = func(ptr unsafe.Pointer, seed uintptr) uintptr {
			return any((*K)(ptr)).(IHashFunc).HashFunc(seed)
		}
	}
	return
}

func parseValueInterface[V any]() (valEqual func(a, b V) bool) {
	var v *V
	if _, ok := any(v).(IEqualFunc[V]); ok {
		valEqual = func(a, b V) bool {
			return any(&a).(IEqualFunc[V]).EqualFunc(b)
		}
	}
	return
}

// optionAs unpacks a type-erased option value, panicking when the option was
// instantiated for a different key or value type than the map.
func optionAs[T any](v any, option string) (t T) {
	if v == nil {
		return
	}
	t, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("oamap: %s: got %T, want %T", option, v, t))
	}
	return t
}
