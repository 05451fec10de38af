package rwlatch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedger_AddRemove(t *testing.T) {
	var g ledger
	g.add(DebugEntry{Thread: 1, Mode: ModeShared, Site: Site{File: "a.go", Line: 1}})
	g.add(DebugEntry{Thread: 1, Mode: ModeExclusive})
	g.add(DebugEntry{Thread: 2, Mode: ModeShared})

	require.True(t, g.holds(1, ModeShared))
	require.True(t, g.holds(1, ModeExclusive))
	require.False(t, g.holds(2, ModeExclusive))

	shared, exclusive := g.counts()
	require.EqualValues(t, 2, shared)
	require.EqualValues(t, 1, exclusive)

	require.True(t, g.remove(1, ModeShared))
	require.False(t, g.remove(1, ModeShared))
	require.Equal(t, 2, g.len())

	require.Equal(t, 1, g.retag(1, 3))
	require.True(t, g.holds(3, ModeExclusive))
	require.False(t, g.holds(1, ModeExclusive))

	snap := g.snapshot()
	require.Len(t, snap, 2)
	require.False(t, snap[0].At.IsZero())
}

func TestLatch_IsLockedBy(t *testing.T) {
	l, _ := testLatch(t, DiagLedger)
	self := GoroutineIdentity{}.Current()

	require.False(t, l.IsLockedBy(self, ModeShared))
	l.RLock()
	require.True(t, l.IsLockedBy(self, ModeShared))
	require.False(t, l.IsLockedBy(self, ModeExclusive))
	require.NoError(t, l.Validate())
	l.RUnlock()

	l.Lock()
	require.True(t, l.IsLockedBy(self, ModeExclusive))
	require.False(t, l.IsLockedBy(self+1, ModeExclusive))
	require.NoError(t, l.Validate())
	l.Unlock()
	require.NoError(t, l.Validate())
	l.Destroy()
}

func TestLatch_IsLockedByWithoutLedger(t *testing.T) {
	l, _ := testLatch(t, DiagOff)
	self := GoroutineIdentity{}.Current()
	l.Lock()
	require.True(t, l.IsLockedBy(self, ModeExclusive))
	require.False(t, l.IsLockedBy(self, ModeShared))
	require.Nil(t, l.Holders())
	l.Unlock()
	require.False(t, l.IsLockedBy(self, ModeExclusive))
	l.Destroy()
}

func TestLatch_RUnlockNotInLedger(t *testing.T) {
	l, _ := testLatch(t, DiagLedger)
	l.RLock()
	r := make(chan any)
	go func() {
		defer func() { r <- recover() }()
		l.RUnlock()
	}()
	fe, ok := (<-r).(*FatalError)
	require.True(t, ok)
	require.ErrorIs(t, fe, ErrNotHeld)
	require.Len(t, fe.Ledger, 1)
	require.EqualValues(t, 1, l.State().Readers)
	l.RUnlock()
	l.Destroy()
}

func TestLatch_Validate(t *testing.T) {
	l, _ := testLatch(t, DiagLedger)
	require.NoError(t, l.Validate())

	// Corrupt the word behind the latch's back.
	l.word.Store(-Free - 5)
	require.ErrorIs(t, l.Validate(), ErrIllegalState)
	l.word.Store(Free)

	l.recursive.Store(true)
	require.ErrorIs(t, l.Validate(), ErrIllegalState)
	l.recursive.Store(false)

	l.word.Store(Free - 2)
	require.ErrorIs(t, l.Validate(), ErrIllegalState, "readers the ledger never saw")
	l.word.Store(Free)

	l.waiters.Store(true)
	require.ErrorIs(t, l.Validate(), ErrIllegalState)
	l.waiters.Store(false)

	require.NoError(t, l.Validate())
	l.Destroy()
	require.ErrorIs(t, l.Validate(), ErrDestroyed)
}

func TestLatch_DumpLedger(t *testing.T) {
	l, _ := testLatch(t, DiagLedger, WithName("root page"))
	l.RLock()
	var b bytes.Buffer
	l.Dump(&b)
	out := b.String()
	require.Contains(t, out, `"root page"`)
	require.Contains(t, out, "holds shared")
	require.Contains(t, out, "ledger_test.go")
	l.RUnlock()
	l.Destroy()
}
