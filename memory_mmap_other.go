//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package oamap

import (
	"errors"
	"fmt"
)

// MmapMemory is unavailable on this platform; NewMmapMemory always fails.
type MmapMemory[E any] struct{}

// NewMmapMemory reports ErrMemoryStrategy on this platform.
func NewMmapMemory[E any]() (*MmapMemory[E], error) {
	return nil, fmt.Errorf("%w: mmap: %w", ErrMemoryStrategy, errors.ErrUnsupported)
}

func (*MmapMemory[E]) Allocate(n int) []E {
	return make([]E, max(n, 0))
}

func (*MmapMemory[E]) Release([]E) {}
