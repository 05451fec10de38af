package rwlatch

import (
	"math/rand/v2"
	"runtime"
	_ "unsafe" // for linkname

	"github.com/llxisdsh/rwlatch/internal/opt"
)

// noCopy may be added to structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
//
// Note that it must not be embedded, due to the Lock and Unlock methods.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// spinPause busy-waits for a random number of pause rounds in [0, maxDelay].
//
//go:nosplit
func spinPause(maxDelay int) {
	if maxDelay <= 0 {
		return
	}
	opt.Pause(rand.IntN(maxDelay + 1))
}

func trySpin(spins *int) bool {
	if runtime_canSpin(*spins) {
		*spins++
		opt.Pause(1)
		return true
	}
	return false
}

// delay is the backoff of the internal bookkeeping locks, whose critical
// sections never park.
func delay(spins *int) {
	if trySpin(spins) {
		return
	}
	*spins = 0
	runtime.Gosched()
}

// nolint:all
//
//go:linkname runtime_canSpin sync.runtime_canSpin
//goland:noinspection ALL
func runtime_canSpin(i int) bool
