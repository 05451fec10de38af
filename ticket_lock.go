package rwlatch

import (
	"sync/atomic"
)

// ticketLock is a fair, FIFO spin-lock guarding the bookkeeping structures
// that sit next to a latch: the ownership ledger, the wait array and the
// registry dump. It is never held across a park, so a waiter only ever
// spins behind another goroutine's short critical section.
//
// It uses the classic "ticket" algorithm.
//   - Lock(): Takes a ticket number. Spins/yields until `serving` == `my_ticket`.
//   - Unlock(): Increments `serving`, allowing the next ticket holder to proceed.
type ticketLock struct {
	_       noCopy
	next    atomic.Uint32
	serving atomic.Uint32
}

func (m *ticketLock) Lock() {
	my := m.next.Add(1) - 1
	var spins int
	for m.serving.Load() != my {
		delay(&spins)
	}
}

func (m *ticketLock) Unlock() {
	m.serving.Add(1)
}
