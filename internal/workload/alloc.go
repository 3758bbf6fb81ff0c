package workload

import (
	"fmt"

	"github.com/llxisdsh/oamap"
)

// Exercise drives mem through a fixed allocate/release pattern: five arrays
// of sizes 1, 4, 9, 16 and 25 are filled, the largest is released, and small
// arrays are allocated and released in interleaved order. Every live array
// must keep its contents throughout.
func Exercise(mem oamap.Memory[int64]) error {
	const n = 5
	arrs := make([][]int64, n+3)
	defer func() {
		for _, a := range arrs {
			if a != nil {
				mem.Release(a)
			}
		}
	}()

	alloc := func(i, size int) error {
		a := mem.Allocate(size)
		if len(a) != size {
			return fmt.Errorf("allocate(%d) returned %d entries", size, len(a))
		}
		for j := range a {
			a[j] = int64((i + 1) * (j + 1))
		}
		arrs[i] = a
		return nil
	}
	release := func(i int) {
		mem.Release(arrs[i])
		arrs[i] = nil
	}
	check := func() error {
		for i, a := range arrs {
			for j, v := range a {
				if want := int64((i + 1) * (j + 1)); v != want {
					return fmt.Errorf("array %d[%d] = %d, want %d", i, j, v, want)
				}
			}
		}
		return nil
	}

	for i := range n {
		if err := alloc(i, (i+1)*(i+1)); err != nil {
			return err
		}
	}
	if err := check(); err != nil {
		return err
	}

	release(n - 1)
	steps := []struct {
		i, size int
	}{
		{n, 2}, {n + 1, 2}, {n + 2, 3},
	}
	for _, s := range steps {
		if err := alloc(s.i, s.size); err != nil {
			return err
		}
	}
	release(n + 1)
	release(n + 2)
	if err := alloc(n+2, 3); err != nil {
		return err
	}
	if err := alloc(n+1, 2); err != nil {
		return err
	}
	return check()
}
