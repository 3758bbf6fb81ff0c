package workload

import (
	"fmt"

	"github.com/llxisdsh/oamap"
)

// Memory strategy names accepted by Config.Memory and the CLI.
const (
	MemoryHeap = "heap"
	MemoryPool = "pool"
	MemoryMmap = "mmap"
)

// MemoryNames lists the accepted strategy names.
var MemoryNames = []string{MemoryHeap, MemoryPool, MemoryMmap}

// NewMemory returns the named strategy for entries of type E.
func NewMemory[E any](name string) (oamap.Memory[E], error) {
	switch name {
	case MemoryHeap, "":
		return oamap.HeapMemory[E]{}, nil
	case MemoryPool:
		return oamap.NewPoolMemory[E](), nil
	case MemoryMmap:
		mem, err := oamap.NewMmapMemory[E]()
		if err != nil {
			return nil, err
		}
		return mem, nil
	default:
		return nil, fmt.Errorf("unknown memory strategy %q (want one of %v)", name, MemoryNames)
	}
}
