//go:build rwlatch_cachelinesize_64

package opt

// CacheLineSize_ pinned by the rwlatch_cachelinesize_64 build tag.
const CacheLineSize_ = 64
