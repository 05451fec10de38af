package rwlatch

import (
	"runtime"
)

// Lock takes an exclusive hold. If the caller already holds the latch
// exclusively the hold is stacked and returns at once; each Lock needs its
// own Unlock.
func (l *Latch) Lock() {
	site := l.callSite()
	l.checkAlive("Lock", site)
	l.lock(l.ids.Current(), 0, site)
}

// LockWithTicket takes an exclusive hold on behalf of a hand-off prepared by
// the owner with PrepareHandoff. It never stacks onto an existing hold, even
// one of the caller: it waits for the latch like any other writer.
// Redeeming a ticket twice, or a ticket of another latch, is fatal.
func (l *Latch) LockWithTicket(t Ticket) {
	site := l.callSite()
	l.checkAlive("LockWithTicket", site)
	serial := l.redeem(t, site)
	l.lock(l.ids.Current(), serial, site)
}

// TryLock takes an exclusive hold if that is possible without waiting:
// the latch is free, or the caller already owns it.
func (l *Latch) TryLock() bool {
	site := l.callSite()
	l.checkAlive("TryLock", site)
	self := l.ids.Current()
	if l.tryXFromFree() {
		l.setWriter(self)
		l.granted(ModeExclusive, self, site, 0)
		return true
	}
	if l.ownedBy(self) {
		l.incrementBy(-Free)
		l.granted(ModeExclusive, self, site, 0)
		return true
	}
	return false
}

func (l *Latch) lock(self ThreadID, ticket uint64, site Site) {
	if l.xlockLow(self, ticket, site) {
		return
	}
	l.xlockSlow(self, ticket, site)
}

// xlockLow makes one attempt at an exclusive hold.
func (l *Latch) xlockLow(self ThreadID, ticket uint64, site Site) bool {
	if l.tryXDecrement() {
		// Word first, then the owner, then the flag that vouches for it.
		l.setWriter(self)
		l.drain(site)
		l.granted(ModeExclusive, self, site, ticket)
		return true
	}
	// The only conflicting holder of a recursive re-entry is the caller, so
	// it succeeds even while other goroutines are parked.
	if ticket == 0 && l.ownedBy(self) {
		l.incrementBy(-Free)
		l.granted(ModeExclusive, self, site, 0)
		return true
	}
	return false
}

func (l *Latch) xlockSlow(self ThreadID, ticket uint64, site Site) {
	ms := &l.stats.exclusive
	ms.spinWaits.add(1)
	var i int
	for {
		for i < l.spinRounds && l.word.Load() <= 0 {
			spinPause(l.spinDelay)
			i++
		}
		if i >= l.spinRounds {
			runtime.Gosched()
		}
		if l.xlockLow(self, ticket, site) {
			ms.spinRounds.add(uint64(i))
			return
		}
		if i < l.spinRounds {
			continue
		}
		ms.spinRounds.add(uint64(i))

		c := l.reserve(WaitExclusive, site)
		l.waiters.Store(true)
		if l.xlockLow(self, ticket, site) {
			l.wq.Free(c)
			return
		}
		l.park(c, ms)
		i = 0
	}
}

// drain waits for the readers still inside a reserved latch to leave. New
// readers cannot get in meanwhile: the word stays at or below zero.
func (l *Latch) drain(site Site) {
	ms := &l.stats.exclusive
	for i := 0; l.word.Load() < 0; {
		if i < l.spinRounds {
			spinPause(l.spinDelay)
			i++
			continue
		}
		ms.spinRounds.add(uint64(i))
		// The last reader signals after its increment reaches zero, so a
		// cell reserved before the re-check cannot miss it.
		c := l.reserve(WaitPendingExclusive, site)
		if l.word.Load() < 0 {
			l.park(c, ms)
		} else {
			l.wq.Free(c)
		}
		i = 0
	}
}

// Unlock releases one exclusive hold. The latch becomes available to others
// only when the last stacked hold is released.
func (l *Latch) Unlock() {
	site := l.callSite()
	w := l.word.Load()
	if w != 0 && (w > -Free || w%Free != 0) {
		l.fatal(ProgrammerError, "Unlock", site, ErrNotHeld)
	}
	if l.level >= DiagChecks {
		self := l.ids.Current()
		if !l.ownedBy(self) {
			l.fatal(ProgrammerError, "Unlock", site, ErrNotOwner)
		}
		if l.ledger != nil && !l.ledger.remove(self, ModeExclusive) {
			l.fatal(ProgrammerError, "Unlock", site, ErrNotHeld)
		}
	}
	if w == 0 {
		// Last hold: nobody may see a free word with a stale owner flag.
		l.recursive.Store(false)
	}
	r := l.incrementBy(Free)
	if r > Free || r%Free != 0 {
		// Another release of the same hold got in after the check above.
		l.incrementBy(-Free)
		l.fatal(ProgrammerError, "Unlock", site, ErrNotHeld)
	}
	if r == Free && l.waiters.Load() {
		l.wake()
	}
}
