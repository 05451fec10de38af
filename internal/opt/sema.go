package opt

import (
	_ "unsafe" // for linkname
)

// Sema is a zero-allocation semaphore.
// It is a direct wrapper around runtime.semacquire/semrelease, so a Release
// that happens before the matching Acquire is never lost.
type Sema uint32

func (s *Sema) Acquire() {
	runtime_semacquire((*uint32)(s))
}

func (s *Sema) Release() {
	runtime_semrelease((*uint32)(s), false, 0)
}

// nolint:all
//
//go:linkname runtime_semacquire sync.runtime_Semacquire
//goland:noinspection ALL
func runtime_semacquire(s *uint32)

// nolint:all
//
//go:linkname runtime_semrelease sync.runtime_Semrelease
//goland:noinspection ALL
func runtime_semrelease(s *uint32, handoff bool, skipframes int)

// nolint:all
//
//go:linkname runtime_doSpin sync.runtime_doSpin
//goland:noinspection ALL
func runtime_doSpin()

// Pause executes n rounds of the runtime's CPU pause loop (PAUSE on amd64,
// YIELD on arm64) without giving up the processor.
//
//go:nosplit
func Pause(n int) {
	for range n {
		runtime_doSpin()
	}
}
