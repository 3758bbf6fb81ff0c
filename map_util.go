package oamap

import (
	"hash/maphash"
	"math"
	"reflect"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// ============================================================================
// Private Constants
// ============================================================================

const (
	// defaultMaxLoadFactor: grow before occupancy would exceed this fraction
	defaultMaxLoadFactor = 0.75
	// baseCapacity: bucket count of a new, moved-from or released map
	baseCapacity = 1
	// growthFactor: minimal multiplier applied to the bucket count on growth
	growthFactor = 2
)

const (
	intSize = 32 << (^uint(0) >> 63) // 32 or 64
	maxInt  = 1<<(intSize-1) - 1     // MaxInt32 or MaxInt64 depending on intSize.
)

// ============================================================================
// Utility Functions
// ============================================================================

// nextPowOf2 calculates the smallest power of 2 that is greater than or equal
// to n.
// Compatible with both 32-bit and 64-bit systems.
//
//go:nosplit
func nextPowOf2(n int) int {
	if n <= 0 {
		return 1
	}
	v := n - 1
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	if intSize == 64 {
		v |= v >> 32
	}
	return v + 1
}

// validLoadFactor reports whether z lies in (0, 1]. NaN is rejected.
func validLoadFactor(z float64) bool {
	return z > 0 && z <= 1 && !math.IsNaN(z)
}

// noescape hides a pointer from escape analysis. noescape is
// the identity function, but escape analysis doesn't think the
// output depends on the input.  noescape is inlined and currently
// compiles down to zero instructions.
// USE CAREFULLY!
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	//nolint:all
	//goland:noinspection ALL
	return unsafe.Pointer(x ^ 0)
}

// noCopy may be added to structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
//
//nolint:unused
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// ============================================================================
// Hash Utilities
// ============================================================================

// HashFunc is the function to hash a key of type K, given a pointer to the
// key and the map's seed.
type HashFunc func(ptr unsafe.Pointer, seed uintptr) uintptr

// defaultHasher picks the hash function for K. Integer keys are mixed with
// the seed by mixInt; strings go through xxhash; everything else uses the
// runtime's hasher via hash/maphash. Named types are matched by kind.
func defaultHasher[K comparable]() HashFunc {
	switch reflect.TypeFor[K]().Kind() {
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return hashInt[uintptr]
	case reflect.Int64, reflect.Uint64:
		if intSize == 64 {
			return hashInt[uint64]
		}
		return hashWideOn32Bit
	case reflect.Int32, reflect.Uint32:
		return hashInt[uint32]
	case reflect.Int16, reflect.Uint16:
		return hashInt[uint16]
	case reflect.Int8, reflect.Uint8:
		return hashInt[uint8]
	case reflect.String:
		return hashString
	default:
		return builtInHasher[K]()
	}
}

// fibMul is 2^intSize divided by the golden ratio, rounded to odd.
const fibMul = 0x9E3779B97F4A7C15 >> (64 - intSize)

// mixInt scrambles x under seed. Both steps are bijections, so distinct
// keys never collide and distinct seeds never agree on a key. The final
// shift folds the well-mixed high bits into the low bits that mod selects.
//
//go:nosplit
func mixInt(x, seed uintptr) uintptr {
	h := (x ^ seed) * fibMul
	return h ^ h>>(intSize/2)
}

func hashInt[T uint8 | uint16 | uint32 | uint64 | uintptr](ptr unsafe.Pointer, seed uintptr) uintptr {
	return mixInt(uintptr(*(*T)(ptr)), seed)
}

// hashWideOn32Bit folds a 64-bit key into a 32-bit uintptr before mixing.
//
//go:nosplit
func hashWideOn32Bit(ptr unsafe.Pointer, seed uintptr) uintptr {
	v := *(*uint64)(ptr)
	return mixInt(uintptr(v)^uintptr(v>>32), seed)
}

func hashString(ptr unsafe.Pointer, seed uintptr) uintptr {
	return uintptr(xxhash.Sum64String(*(*string)(ptr))) ^ seed
}

// builtInHasher hashes K with the runtime's own hash function, the one
// Go's built-in map uses, under a fresh random seed.
func builtInHasher[K comparable]() HashFunc {
	s := maphash.MakeSeed()
	return func(ptr unsafe.Pointer, seed uintptr) uintptr {
		return uintptr(maphash.Comparable(s, *(*K)(ptr))) ^ seed
	}
}

// defaultValueEqual picks the value comparison used by Map.Equal.
func defaultValueEqual[V any]() func(a, b V) bool {
	if eq := parseValueInterface[V](); eq != nil {
		return eq
	}
	if reflect.TypeFor[V]().Comparable() {
		return func(a, b V) bool {
			return any(a) == any(b)
		}
	}
	return func(a, b V) bool {
		return reflect.DeepEqual(a, b)
	}
}
