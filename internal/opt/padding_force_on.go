//go:build rwlatch_enable_padding

package opt

import (
	"unsafe"
)

// CounterStripe_ is one slot of a striped statistics counter.
// Padding is force-enabled via the rwlatch_enable_padding build tag.
// Use: go build -tags=rwlatch_enable_padding
type CounterStripe_ struct {
	C uint64 // Counter value, accessed atomically
	_ [(CacheLineSize_ - unsafe.Sizeof(struct {
		C uint64
	}{})%CacheLineSize_) % CacheLineSize_]byte
}

const Padded_ = true
