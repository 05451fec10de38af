package rwlatch

import (
	"github.com/pkg/errors"
)

// IsLockedBy reports whether id holds the latch in mode.
//
// Shared holds are only known to a latch with a ledger (DiagLedger); without
// one, IsLockedBy answers exclusive questions from the recorded owner and
// shared ones with false.
func (l *Latch) IsLockedBy(id ThreadID, mode Mode) bool {
	if l.ledger != nil {
		return l.ledger.holds(id, mode)
	}
	return mode == ModeExclusive && l.word.Load() <= 0 && l.ownedBy(id)
}

// Validate checks that the latch is in one of its legal states and, with a
// ledger, that the ledger agrees with the lock word. It is meant for a
// quiescent latch: concurrent acquisitions and releases can make a healthy
// latch look inconsistent for an instant.
func (l *Latch) Validate() error {
	s := l.State()
	if !s.Legal {
		return errors.Wrapf(ErrIllegalState, "%s: word %#x", l, s.Word)
	}
	if l.destroyed.Load() {
		return errors.Wrapf(ErrDestroyed, "%s", l)
	}
	switch {
	case s.Word > 0 && s.Recursive:
		return errors.Wrapf(ErrIllegalState, "%s: owner flag set without a writer: %s", l, s)
	case s.Word <= 0 && !s.Recursive:
		return errors.Wrapf(ErrIllegalState, "%s: writer without an owner: %s", l, s)
	case s.Word == Free && s.Waiters:
		// A parked acquirer would have been signalled by the release that
		// freed the word; the flag may only be up while someone is inside.
		if l.parked() == 0 {
			return errors.Wrapf(ErrIllegalState, "%s: waiters flag on a free latch", l)
		}
	}
	if l.ledger == nil {
		return nil
	}
	shared, exclusive := l.ledger.counts()
	if shared != s.Readers {
		return errors.Wrapf(ErrIllegalState,
			"%s: ledger has %d shared holders, word says %d", l, shared, s.Readers)
	}
	if exclusive != s.Holds {
		return errors.Wrapf(ErrIllegalState,
			"%s: ledger has %d exclusive holds, word says %d", l, exclusive, s.Holds)
	}
	return nil
}

// parked counts the cells reserved on l, when the wait queue can tell.
func (l *Latch) parked() int {
	if a, ok := l.wq.(*SyncArray); ok {
		a.mu.Lock()
		n := len(a.byLatch[l])
		a.mu.Unlock()
		return n
	}
	return -1
}
