//go:build !(amd64 || 386 || arm || mips || mipsle || wasm) && !rwlatch_disable_padding && !rwlatch_enable_padding

package opt

import (
	"unsafe"
)

// CounterStripe_ is one slot of a striped statistics counter.
// Padding is automatically enabled for architectures that are NOT:
// - amd64 (x86_64): Hardware optimizations often make padding less critical
// - 32-bit architectures (386, arm, mips, mipsle, wasm): Smaller cache lines/memory constraints
//
// Enabled for: arm64, s390x, ppc64, ppc64le, riscv64, loong64, mips64, mips64le, etc.
type CounterStripe_ struct {
	C uint64 // Counter value, accessed atomically
	_ [(CacheLineSize_ - unsafe.Sizeof(struct {
		C uint64
	}{})%CacheLineSize_) % CacheLineSize_]byte
}

// Padded_ reports whether CounterStripe_ occupies a full cache line.
const Padded_ = true
