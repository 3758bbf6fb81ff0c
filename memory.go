package oamap

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/llxisdsh/pb"
)

// Memory is the raw storage strategy behind the entry array of a Map.
//
// A Map asks its Memory for a fresh array whenever it is built or rehashed
// and returns the previous array through Release. Implementations neither
// construct nor destroy entries: the Map zeroes every live entry before it
// releases an array, and it only reads entries it has written itself.
//
// A single Memory may be shared by maps owned by different goroutines, so
// implementations that keep state must be safe for concurrent use.
type Memory[E any] interface {
	// Allocate returns storage for exactly n entries.
	Allocate(n int) []E
	// Release returns storage previously obtained from Allocate.
	// The slice has the length that was requested from Allocate.
	Release(s []E)
}

// HeapMemory allocates entry arrays on the Go heap and leaves reclamation to
// the garbage collector. It is the default Memory of a Map.
type HeapMemory[E any] struct{}

func (HeapMemory[E]) Allocate(n int) []E {
	return make([]E, n)
}

func (HeapMemory[E]) Release([]E) {}

// PoolMemory recycles entry arrays through power-of-two size classes.
//
// Arrays are kept in one sync.Pool per size class, so a released table is
// reused by the next map (or the next rehash) that needs the same class.
// Released arrays are cleared before pooling. The zero value is ready to use
// and a PoolMemory is safe for concurrent use by maps on different
// goroutines.
type PoolMemory[E any] struct {
	pools  pb.MapOf[int, *sync.Pool]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewPoolMemory returns an empty PoolMemory.
func NewPoolMemory[E any]() *PoolMemory[E] {
	return &PoolMemory[E]{}
}

func (p *PoolMemory[E]) Allocate(n int) []E {
	if n <= 0 {
		return []E{}
	}
	class := nextPowOf2(n)
	if v := p.pool(class).Get(); v != nil {
		p.hits.Add(1)
		return (*v.(*[]E))[:n]
	}
	p.misses.Add(1)
	return make([]E, n, class)
}

func (p *PoolMemory[E]) Release(s []E) {
	c := cap(s)
	if c == 0 || c != nextPowOf2(c) {
		// not one of ours
		return
	}
	s = s[:c]
	clear(s)
	p.pool(c).Put(&s)
}

// Stats reports how many allocations were served from a pool (hits) and how
// many had to allocate (misses).
func (p *PoolMemory[E]) Stats() (hits, misses int64) {
	return p.hits.Load(), p.misses.Load()
}

func (p *PoolMemory[E]) pool(class int) *sync.Pool {
	if sp, ok := p.pools.Load(class); ok {
		return sp
	}
	sp, _ := p.pools.LoadOrStore(class, &sync.Pool{})
	return sp
}

// hasPointers reports whether values of t contain pointers the garbage
// collector must see.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Slice,
		reflect.String, reflect.Interface, reflect.Func, reflect.Chan:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
