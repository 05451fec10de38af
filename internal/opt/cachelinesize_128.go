//go:build rwlatch_cachelinesize_128

package opt

// CacheLineSize_ pinned by the rwlatch_cachelinesize_128 build tag.
// Apple M-series and some POWER parts fetch 128 byte lines.
const CacheLineSize_ = 128
