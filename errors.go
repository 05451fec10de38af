package rwlatch

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Causes carried by FatalError and returned by Validate.
var (
	ErrNotHeld            = errors.New("latch not held")
	ErrNotOwner           = errors.New("caller is not the exclusive owner")
	ErrOutstandingHolders = errors.New("latch has outstanding holders")
	ErrDestroyed          = errors.New("latch destroyed")
	// ErrBadTicket covers zero, foreign, revoked and already redeemed tickets.
	ErrBadTicket     = errors.New("invalid hand-off ticket")
	ErrIllegalState  = errors.New("illegal latch state")
	ErrWaitArrayFull = errors.New("wait array full")
)

// Kind classifies a fatal error.
type Kind uint8

const (
	// ProgrammerError is a violated precondition, such as releasing a latch
	// that is not held.
	ProgrammerError Kind = iota + 1
	// ResourceExhaustion means the wait queue could not hand out a cell.
	ResourceExhaustion
)

func (k Kind) String() string {
	switch k {
	case ProgrammerError:
		return "programmer error"
	case ResourceExhaustion:
		return "resource exhaustion"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// FatalError is the value a latch panics with. Continuing after a broken
// synchronization invariant risks silently corrupting the data the latch
// protects, so nothing is returned to the caller.
type FatalError struct {
	Kind   Kind
	Op     string
	Latch  uint64
	Name   string
	Site   Site
	State  State
	Ledger []DebugEntry // holders at the time of the failure, when a ledger is kept
	Err    error
}

func (e *FatalError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rwlatch: %s in %s of latch %d", e.Kind, e.Op, e.Latch)
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	fmt.Fprintf(&b, " at %s: %v [%s]", e.Site, e.Err, e.State)
	return b.String()
}

func (e *FatalError) Unwrap() error { return e.Err }

// fatal logs everything known about the latch and panics with a *FatalError.
func (l *Latch) fatal(kind Kind, op string, site Site, err error) {
	fe := &FatalError{
		Kind:  kind,
		Op:    op,
		Latch: l.id,
		Name:  l.name,
		Site:  site,
		State: l.State(),
		Err:   err,
	}
	fields := []zap.Field{
		zap.Stringer("kind", kind),
		zap.String("op", op),
		zap.Uint64("latch", l.id),
		zap.String("name", l.name),
		zap.Stringer("site", site),
		zap.Int64("word", fe.State.Word),
		zap.Bool("waiters", fe.State.Waiters),
		zap.Bool("recursive", fe.State.Recursive),
		zap.Stringer("writer", fe.State.Writer),
		zap.Error(err),
	}
	if l.ledger != nil {
		fe.Ledger = l.ledger.snapshot()
		var b strings.Builder
		dumpEntries(&b, fe.Ledger)
		fields = append(fields, zap.String("holders", b.String()))
	}
	l.logger.Error("rwlatch: fatal latch misuse", fields...)
	panic(fe)
}
