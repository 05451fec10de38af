//go:build (amd64 || 386 || arm || mips || mipsle || wasm) && !rwlatch_disable_padding && !rwlatch_enable_padding

package opt

// CounterStripe_ is one slot of a striped statistics counter.
// Padding is disabled by default for:
// - amd64
// - 32-bit architectures (386, arm, mips, mipsle, wasm)
type CounterStripe_ struct {
	C uint64 // Counter value, accessed atomically
}

const Padded_ = false
