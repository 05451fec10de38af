package rwlatch

// wake runs after a release returned the word to Free while the waiters
// flag was up. The flag is cleared before the signal: a goroutine raising
// it again from now on is covered by its own final attempt or by the
// release after it.
func (l *Latch) wake() {
	l.waiters.Store(false)
	l.wq.Signal(l, WaitShared|WaitExclusive)
}
