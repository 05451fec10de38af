package rwlatch

import (
	"fmt"
)

// Free is the lock word of a latch nobody holds.
//
// Lock word layout:
//
//	word == Free           unlocked
//	0 < word < Free        shared by Free-word readers
//	word == 0              exclusive
//	-Free < word < 0       shared by -word readers, a writer reservation drains them
//	word <= -Free          exclusive, recursively: (-word)/Free + 1 holds
const Free int64 = 0x20000000

// decrement subtracts amount from the lock word if, and only if, the word is
// greater than threshold. It never leaves an intermediate value behind.
//
//go:nosplit
func (l *Latch) decrement(amount, threshold int64) bool {
	for {
		w := l.word.Load()
		if w <= threshold {
			return false
		}
		if l.word.CompareAndSwap(w, w-amount) {
			return true
		}
	}
}

// tryRDecrement takes one shared hold. It fails while a writer holds or has
// reserved the latch, and keeps one unit of headroom so that a full house
// of readers can never be mistaken for an exclusive hold.
func (l *Latch) tryRDecrement() bool {
	return l.decrement(1, 1)
}

// tryXDecrement reserves the latch for a writer. It succeeds while no other
// writer holds or has reserved it; readers still inside must then drain.
func (l *Latch) tryXDecrement() bool {
	return l.decrement(Free, 0)
}

// tryXFromFree takes an exclusive hold only if nobody holds the latch.
func (l *Latch) tryXFromFree() bool {
	return l.word.CompareAndSwap(Free, 0)
}

func (l *Latch) incrementBy(n int64) int64 {
	return l.word.Add(n)
}

// State is a decoded snapshot of a latch.
type State struct {
	Word      int64
	Readers   int64 // shared holds, including those a reservation is draining
	Holds     int64 // exclusive holds, recursion included
	Reserved  bool  // a writer owns the latch but readers are still inside
	Waiters   bool
	Recursive bool
	Writer    ThreadID // meaningful only while Recursive
	Legal     bool
}

func decodeState(w int64) State {
	s := State{Word: w, Legal: true}
	switch {
	case w == Free:
	case w > 0 && w < Free:
		s.Readers = Free - w
	case w == 0:
		s.Holds = 1
	case w > -Free && w < 0:
		s.Readers = -w
		s.Reserved = true
	case w <= -Free && w%Free == 0:
		s.Holds = -w/Free + 1
	default:
		s.Legal = false
	}
	return s
}

func (s State) IsFree() bool { return s.Word == Free }

func (s State) Exclusive() bool { return s.Holds > 0 }

func (s State) String() string {
	var mode string
	switch {
	case !s.Legal:
		mode = "corrupt"
	case s.Word == Free:
		mode = "free"
	case s.Reserved:
		mode = fmt.Sprintf("reserved, draining %d readers", s.Readers)
	case s.Holds > 0:
		mode = fmt.Sprintf("exclusive x%d", s.Holds)
	default:
		mode = fmt.Sprintf("shared x%d", s.Readers)
	}
	str := fmt.Sprintf("word=%#x (%s) waiters=%t", s.Word, mode, s.Waiters)
	if s.Recursive {
		str += " writer=" + s.Writer.String()
	}
	return str
}
