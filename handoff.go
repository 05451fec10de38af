package rwlatch

// Ticket is a single-use capability to queue for an exclusive hold of one
// latch without the recursion check, issued by the current owner with
// PrepareHandoff and redeemed with LockWithTicket.
//
// The zero Ticket is invalid.
type Ticket struct {
	latch  *Latch
	serial uint64
}

// IsZero reports whether t was never issued.
func (t Ticket) IsZero() bool { return t.serial == 0 }

// Latch returns the latch the ticket was issued for.
func (t Ticket) Latch() *Latch { return t.latch }

// PrepareHandoff issues a ticket for a later exclusive hold of l. Only the
// exclusive owner may call it. A ticket stays valid until it is redeemed,
// whatever other tickets are issued meanwhile.
func (l *Latch) PrepareHandoff() Ticket {
	site := l.callSite()
	if !l.ownedBy(l.ids.Current()) {
		l.fatal(ProgrammerError, "PrepareHandoff", site, ErrNotOwner)
	}
	serial := l.handoffSeq.Add(1)
	l.tickets.Store(serial, struct{}{})
	return Ticket{latch: l, serial: serial}
}

// OutstandingTickets returns the number of issued tickets not redeemed yet.
func (l *Latch) OutstandingTickets() int { return l.tickets.Size() }

// redeem consumes t and returns its serial for the ledger.
func (l *Latch) redeem(t Ticket, site Site) uint64 {
	if t.latch != l || t.serial == 0 {
		l.fatal(ProgrammerError, "LockWithTicket", site, ErrBadTicket)
	}
	if _, ok := l.tickets.LoadAndDelete(t.serial); !ok {
		l.fatal(ProgrammerError, "LockWithTicket", site, ErrBadTicket)
	}
	return t.serial
}

// MoveOwnership hands the caller's exclusive hold, with all its stacked
// holds, to another goroutine without releasing it. From then on only to
// may re-enter, release or hand the latch off. The caller must own the latch.
func (l *Latch) MoveOwnership(to ThreadID) {
	site := l.callSite()
	self := l.ids.Current()
	if !l.ownedBy(self) {
		l.fatal(ProgrammerError, "MoveOwnership", site, ErrNotOwner)
	}
	l.writer.Store(uint64(to))
	if l.ledger != nil {
		l.ledger.retag(self, to)
	}
}
