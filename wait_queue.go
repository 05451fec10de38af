package rwlatch

import (
	"strings"
)

// Mode is the kind of hold a goroutine has on a latch.
type Mode uint8

const (
	ModeShared Mode = iota + 1
	ModeExclusive
)

func (m Mode) String() string {
	switch m {
	case ModeShared:
		return "shared"
	case ModeExclusive:
		return "exclusive"
	default:
		return "none"
	}
}

// WaitMode is what a parked acquirer waits for. Values are bit flags so
// that one signal can address several classes of waiters.
type WaitMode uint8

const (
	// WaitShared waits for the writer to leave.
	WaitShared WaitMode = 1 << iota
	// WaitExclusive waits for the word to return to Free.
	WaitExclusive
	// WaitPendingExclusive is a writer that already holds the reservation
	// and waits for the readers inside to drain. It is signalled by the
	// last reader, not by the waiters flag.
	WaitPendingExclusive
)

func (m WaitMode) String() string {
	var parts []string
	if m&WaitShared != 0 {
		parts = append(parts, "shared")
	}
	if m&WaitExclusive != 0 {
		parts = append(parts, "exclusive")
	}
	if m&WaitPendingExclusive != 0 {
		parts = append(parts, "pending-exclusive")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// WaitQueue parks acquirers that ran out of spin budget.
//
// A latch reserves a cell before its final attempt and then either frees it
// at once (the attempt succeeded) or waits on it and frees it afterwards.
// A release signals every cell currently reserved on the latch in the given
// modes; a cell signalled before Wait is called must make Wait return
// immediately, which is what keeps wakeups from being lost.
type WaitQueue interface {
	// Reserve binds a new cell to the latch, mode and calling goroutine.
	// An error means no cell could be allocated.
	Reserve(l *Latch, mode WaitMode, site Site) (*WaitCell, error)
	// Wait blocks until the cell has been signalled.
	Wait(c *WaitCell)
	// Signal wakes every cell reserved on l whose mode is in modes.
	Signal(l *Latch, modes WaitMode)
	// Free returns the cell. It may be called whether or not Wait was.
	Free(c *WaitCell)
}
