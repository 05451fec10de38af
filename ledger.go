package rwlatch

import (
	"fmt"
	"io"
	"time"
)

// DebugEntry records one hold in a latch's ledger.
type DebugEntry struct {
	Thread ThreadID
	Site   Site
	Mode   Mode
	Ticket uint64 // serial of the hand-off ticket redeemed for the hold, if any
	At     time.Time
}

func (e DebugEntry) String() string {
	s := fmt.Sprintf("%s holds %s since %s from %s",
		e.Thread, e.Mode, e.At.Format(time.RFC3339Nano), e.Site)
	if e.Ticket != 0 {
		s += fmt.Sprintf(" via ticket %d", e.Ticket)
	}
	return s
}

// ledger lists the current holders of one latch. It has its own lock,
// independent of the latch word, and nothing parks while holding it.
type ledger struct {
	mu      ticketLock
	entries []DebugEntry
}

func (g *ledger) add(e DebugEntry) {
	e.At = time.Now()
	g.mu.Lock()
	g.entries = append(g.entries, e)
	g.mu.Unlock()
}

// remove drops the newest entry of thread in mode.
func (g *ledger) remove(thread ThreadID, mode Mode) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.entries) - 1; i >= 0; i-- {
		e := g.entries[i]
		if e.Thread == thread && e.Mode == mode {
			g.entries = append(g.entries[:i], g.entries[i+1:]...)
			return true
		}
	}
	return false
}

// retag moves the exclusive entries of from to to.
func (g *ledger) retag(from, to ThreadID) int {
	var n int
	g.mu.Lock()
	for i := range g.entries {
		if g.entries[i].Thread == from && g.entries[i].Mode == ModeExclusive {
			g.entries[i].Thread = to
			n++
		}
	}
	g.mu.Unlock()
	return n
}

func (g *ledger) holds(thread ThreadID, mode Mode) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.entries {
		if e.Thread == thread && e.Mode == mode {
			return true
		}
	}
	return false
}

func (g *ledger) counts() (shared, exclusive int64) {
	g.mu.Lock()
	for _, e := range g.entries {
		if e.Mode == ModeShared {
			shared++
		} else {
			exclusive++
		}
	}
	g.mu.Unlock()
	return shared, exclusive
}

func (g *ledger) len() int {
	g.mu.Lock()
	n := len(g.entries)
	g.mu.Unlock()
	return n
}

func (g *ledger) snapshot() []DebugEntry {
	g.mu.Lock()
	out := make([]DebugEntry, len(g.entries))
	copy(out, g.entries)
	g.mu.Unlock()
	return out
}

func dumpEntries(w io.Writer, entries []DebugEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
