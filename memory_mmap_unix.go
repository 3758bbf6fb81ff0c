//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package oamap

import (
	"fmt"
	"reflect"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MmapMemory backs entry arrays with anonymous private mappings outside the
// Go heap and unmaps them on Release.
//
// The garbage collector does not scan mapped memory, so MmapMemory only
// serves entry types without pointers. NewMmapMemory rejects anything else,
// and Allocate panics for such types, so the zero value is equally safe.
type MmapMemory[E any] struct{}

// NewMmapMemory returns a MmapMemory for E, or an error wrapping
// ErrMemoryStrategy when E holds pointers.
func NewMmapMemory[E any]() (*MmapMemory[E], error) {
	if err := checkMmapType[E](); err != nil {
		return nil, err
	}
	return &MmapMemory[E]{}, nil
}

func checkMmapType[E any]() error {
	if t := reflect.TypeFor[E](); hasPointers(t) {
		return fmt.Errorf("%w: mmap: %v contains pointers", ErrMemoryStrategy, t)
	}
	return nil
}

// Allocate maps n zeroed entries. It panics with an error wrapping
// ErrMemoryStrategy when E holds pointers.
func (*MmapMemory[E]) Allocate(n int) []E {
	if err := checkMmapType[E](); err != nil {
		panic(err)
	}
	size := int(unsafe.Sizeof(*new(E)))
	if n <= 0 || size == 0 {
		return make([]E, max(n, 0))
	}
	b, err := unix.Mmap(-1, 0, n*size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(fmt.Errorf("oamap: mmap %d bytes: %w", n*size, err))
	}
	return unsafe.Slice((*E)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

func (*MmapMemory[E]) Release(s []E) {
	size := int(unsafe.Sizeof(*new(E)))
	if len(s) == 0 || size == 0 {
		return
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*size)
	if err := unix.Munmap(b); err != nil {
		panic(fmt.Errorf("oamap: munmap %d bytes: %w", len(b), err))
	}
}
