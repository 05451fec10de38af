//go:build rwlatch_disable_padding && !rwlatch_enable_padding

package opt

// CounterStripe_ is one slot of a striped statistics counter.
// Padding is force-disabled via the rwlatch_disable_padding build tag.
// Use: go build -tags=rwlatch_disable_padding
type CounterStripe_ struct {
	C uint64 // Counter value, accessed atomically
}

const Padded_ = false
