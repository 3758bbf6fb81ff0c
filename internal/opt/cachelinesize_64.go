//go:build oamap_cachelinesize_64 && !oamap_cachelinesize_128

package opt

const CacheLineSize_ uintptr = 64
