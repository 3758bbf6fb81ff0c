//go:build !oamap_cachelinesize_64 && !oamap_cachelinesize_128

package opt

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize_ is the padding unit for per-worker counters.
// It comes from golang.org/x/sys/cpu unless a fixed size is selected with
// the oamap_cachelinesize_64 or oamap_cachelinesize_128 build tag.
const CacheLineSize_ = unsafe.Sizeof(cpu.CacheLinePad{})
