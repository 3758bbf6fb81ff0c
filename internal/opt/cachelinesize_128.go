//go:build oamap_cachelinesize_128

package opt

const CacheLineSize_ uintptr = 128
