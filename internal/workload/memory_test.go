package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llxisdsh/oamap"
)

func TestNewMemory(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"", false},
		{MemoryHeap, false},
		{MemoryPool, false},
		{"arena", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem, err := NewMemory[int](tt.name)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			s := mem.Allocate(10)
			assert.Len(t, s, 10)
			mem.Release(s)
		})
	}
}

func TestNewMemoryPoolType(t *testing.T) {
	mem, err := NewMemory[int](MemoryPool)
	require.NoError(t, err)
	assert.IsType(t, (*oamap.PoolMemory[int])(nil), mem)
}

func TestNewMemoryMmapPointers(t *testing.T) {
	_, err := NewMemory[string](MemoryMmap)
	assert.ErrorIs(t, err, oamap.ErrMemoryStrategy)
}
