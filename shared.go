package rwlatch

import (
	"runtime"
	"sync"
)

// RLock takes a shared hold, blocking while a writer holds or has reserved
// the latch.
func (l *Latch) RLock() {
	site := l.callSite()
	l.checkAlive("RLock", site)
	if l.tryRDecrement() {
		l.granted(ModeShared, 0, site, 0)
		return
	}
	l.rlockSlow(site)
}

// TryRLock takes a shared hold if that is possible without waiting.
func (l *Latch) TryRLock() bool {
	site := l.callSite()
	l.checkAlive("TryRLock", site)
	if !l.tryRDecrement() {
		return false
	}
	l.granted(ModeShared, 0, site, 0)
	return true
}

func (l *Latch) rlockSlow(site Site) {
	ms := &l.stats.shared
	ms.spinWaits.add(1)
	var i int
	for {
		for i < l.spinRounds && l.word.Load() <= 1 {
			spinPause(l.spinDelay)
			i++
		}
		if i >= l.spinRounds {
			runtime.Gosched()
		}
		if l.tryRDecrement() {
			ms.spinRounds.add(uint64(i))
			l.granted(ModeShared, 0, site, 0)
			return
		}
		if i < l.spinRounds {
			// Lost the race for a word that looked available.
			continue
		}
		ms.spinRounds.add(uint64(i))

		c := l.reserve(WaitShared, site)
		// The flag goes up before the last attempt: a release that misses
		// the attempt is ordered after the flag and will signal the cell.
		l.waiters.Store(true)
		if l.tryRDecrement() {
			l.wq.Free(c)
			l.granted(ModeShared, 0, site, 0)
			return
		}
		l.park(c, ms)
		i = 0
	}
}

// RUnlock releases a shared hold.
func (l *Latch) RUnlock() {
	site := l.callSite()
	if l.ledger != nil && !l.ledger.remove(l.ids.Current(), ModeShared) {
		l.fatal(ProgrammerError, "RUnlock", site, ErrNotHeld)
	}
	w := l.incrementBy(1)
	switch {
	case w == 0:
		// The last reader left a reserved latch: the writer is done draining.
		l.wq.Signal(l, WaitPendingExclusive)
	case w == Free:
		if l.waiters.Load() {
			l.wake()
		}
	case w == 1 || w > Free || w <= -Free+1:
		// The hold was exclusive (0 or recursive) or the latch was free.
		l.incrementBy(-1)
		l.fatal(ProgrammerError, "RUnlock", site, ErrNotHeld)
	}
}

// RLocker returns a sync.Locker that takes shared holds on l.
func (l *Latch) RLocker() sync.Locker {
	return (*rlocker)(l)
}

type rlocker Latch

func (r *rlocker) Lock()   { (*Latch)(r).RLock() }
func (r *rlocker) Unlock() { (*Latch)(r).RUnlock() }
