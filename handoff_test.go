package rwlatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandoff_TicketQueuesForNextHold(t *testing.T) {
	l, _ := testLatch(t, DiagLedger, WithSpinRounds(1))
	l.Lock()
	ticket := l.PrepareHandoff()
	require.False(t, ticket.IsZero())
	require.Same(t, l, ticket.Latch())

	got := make(chan ThreadID)
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.LockWithTicket(ticket)
		got <- GoroutineIdentity{}.Current()
		<-release
		l.Unlock()
	}()

	waitFor(t, "ticket holder to park", func() bool { return l.OSWaits() > 0 })
	l.Unlock()

	var id ThreadID
	select {
	case id = <-got:
	case <-done:
		t.Fatal("ticket holder exited early")
	}
	require.True(t, l.IsLockedBy(id, ModeExclusive))
	holders := l.Holders()
	require.Len(t, holders, 1)
	require.Equal(t, ticket.serial, holders[0].Ticket)
	require.Equal(t, id, holders[0].Thread)

	close(release)
	<-done
	require.True(t, l.State().IsFree())
	l.Destroy()
}

func TestHandoff_TicketSkipsRecursion(t *testing.T) {
	l, _ := testLatch(t, DiagOff)
	l.Lock()
	ticket := l.PrepareHandoff()
	// Redeemed by the owner itself the ticket must wait for the latch
	// rather than stack a hold; the owner's own release then lets it in.
	got := make(chan struct{})
	self := l.ids.Current()
	go func() {
		// Only the owner identity matters for recursion, so borrow it.
		l.lock(self, l.redeem(ticket, Site{}), Site{})
		close(got)
	}()
	notYet(t, "ticketed lock stacking onto the owner's hold", got)
	if w := l.word.Load(); w != 0 {
		t.Fatalf("word = %#x, want 0", w)
	}
	l.Unlock()
	within(t, "ticketed lock", got)
	l.Unlock()
	l.Destroy()
}

func TestHandoff_BadTickets(t *testing.T) {
	l, _ := testLatch(t, DiagOff)
	other, _ := testLatch(t, DiagOff)

	mustFatal(t, ProgrammerError, ErrBadTicket, func() { l.LockWithTicket(Ticket{}) })

	l.Lock()
	first := l.PrepareHandoff()
	second := l.PrepareHandoff()
	l.Unlock()
	require.Equal(t, 2, l.OutstandingTickets())

	mustFatal(t, ProgrammerError, ErrBadTicket, func() { other.LockWithTicket(second) })

	l.LockWithTicket(second)
	l.Unlock()
	mustFatal(t, ProgrammerError, ErrBadTicket, func() { l.LockWithTicket(second) })

	l.LockWithTicket(first)
	l.Unlock()
	require.Zero(t, l.OutstandingTickets())
	require.True(t, l.State().IsFree())
	l.Destroy()
	other.Destroy()
}

func TestHandoff_TicketSurvivesLaterOwners(t *testing.T) {
	l, _ := testLatch(t, DiagLedger)
	l.Lock()
	first := l.PrepareHandoff()
	l.Unlock()

	// Another owner issues its own ticket before the first is redeemed.
	done := make(chan Ticket)
	go func() {
		l.Lock()
		tk := l.PrepareHandoff()
		l.Unlock()
		done <- tk
	}()
	second := <-done

	l.LockWithTicket(first)
	require.Equal(t, first.serial, l.Holders()[0].Ticket)
	l.Unlock()
	require.Equal(t, 1, l.OutstandingTickets())

	l.LockWithTicket(second)
	l.Unlock()
	require.Zero(t, l.OutstandingTickets())
	l.Destroy()
}

func TestHandoff_PrepareRequiresOwner(t *testing.T) {
	l, _ := testLatch(t, DiagOff)
	mustFatal(t, ProgrammerError, ErrNotOwner, func() { l.PrepareHandoff() })
	l.RLock()
	mustFatal(t, ProgrammerError, ErrNotOwner, func() { l.PrepareHandoff() })
	l.RUnlock()
	l.Destroy()
}

func TestMoveOwnership(t *testing.T) {
	l, _ := testLatch(t, DiagLedger)
	l.Lock()
	l.Lock()
	producer := GoroutineIdentity{}.Current()

	consumerID := make(chan ThreadID)
	moved := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumerID <- GoroutineIdentity{}.Current()
		<-moved
		// The consumer inherits both holds and may stack another one.
		l.Lock()
		l.Unlock()
		l.Unlock()
		l.Unlock()
	}()

	consumer := <-consumerID
	l.MoveOwnership(consumer)
	require.True(t, l.IsLockedBy(consumer, ModeExclusive))
	require.False(t, l.IsLockedBy(producer, ModeExclusive))
	require.Equal(t, consumer, l.State().Writer)
	require.NoError(t, l.Validate())

	// The producer is no longer the owner.
	require.False(t, l.TryLock())
	mustFatal(t, ProgrammerError, ErrNotOwner, l.Unlock)
	mustFatal(t, ProgrammerError, ErrNotOwner, func() { l.MoveOwnership(producer) })

	close(moved)
	<-done
	require.True(t, l.State().IsFree())
	require.Empty(t, l.Holders())
	l.Destroy()
}
