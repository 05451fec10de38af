package rwlatch

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSyncArray_SignalBeforeWait(t *testing.T) {
	l, array := testLatch(t, DiagOff)
	c, err := array.Reserve(l, WaitShared, Site{})
	require.NoError(t, err)
	require.Equal(t, 1, array.Len())

	array.Signal(l, WaitShared)
	done := make(chan struct{})
	go func() {
		array.Wait(c)
		close(done)
	}()
	within(t, "Wait after Signal", done)
	array.Free(c)
	require.Zero(t, array.Len())
	require.EqualValues(t, 1, array.Signals())
	l.Destroy()
}

func TestSyncArray_SignalByMode(t *testing.T) {
	l, array := testLatch(t, DiagOff)
	other, _ := testLatch(t, DiagOff)
	shared, err := array.Reserve(l, WaitShared, Site{})
	require.NoError(t, err)
	drain, err := array.Reserve(l, WaitPendingExclusive, Site{})
	require.NoError(t, err)
	foreign, err := array.Reserve(other, WaitShared, Site{})
	require.NoError(t, err)

	array.Signal(l, WaitShared|WaitExclusive)
	cells := array.Cells()
	require.Len(t, cells, 3)
	signalled := map[WaitMode]int{}
	for _, c := range cells {
		if c.Signalled {
			signalled[c.Mode]++
			require.Equal(t, l.ID(), c.Latch)
		}
	}
	require.Equal(t, map[WaitMode]int{WaitShared: 1}, signalled)

	array.Signal(l, WaitPendingExclusive)
	array.Wait(shared)
	array.Wait(drain)
	for _, c := range []*WaitCell{shared, drain, foreign} {
		array.Free(c)
	}
	require.Zero(t, array.Len())
	require.EqualValues(t, 3, array.Reservations())
	l.Destroy()
	other.Destroy()
}

func TestSyncArray_Full(t *testing.T) {
	array := NewSyncArray(1, nil)
	l := New(DiagOff, array, nil, WithRegistry(NewRegistry()), WithStats(NewStats()), WithSpinRounds(0))
	held, err := array.Reserve(l, WaitExclusive, Site{})
	require.NoError(t, err)

	_, err = array.Reserve(l, WaitShared, Site{})
	require.ErrorIs(t, err, ErrWaitArrayFull)

	// A latch that cannot park has no way to honour the acquisition.
	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		l.Lock()
		close(locked)
		<-release
		l.Unlock()
	}()
	<-locked
	fe := mustFatal(t, ResourceExhaustion, ErrWaitArrayFull, l.RLock)
	require.Equal(t, "reserve shared", fe.Op)

	array.Free(held)
	close(release)
	waitFor(t, "latch free", func() bool { return l.State().IsFree() })
	l.Destroy()
}

func TestSyncArray_FreeTwice(t *testing.T) {
	l, array := testLatch(t, DiagOff)
	c, err := array.Reserve(l, WaitShared, Site{})
	require.NoError(t, err)
	array.Free(c)
	require.Panics(t, func() { array.Free(c) })
	l.Destroy()
}

func TestSyncArray_LongWaitsAndPrint(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	array := NewSyncArray(4, zap.New(core))
	l := New(DiagChecks, array, nil, WithRegistry(NewRegistry()), WithStats(NewStats()), WithName("leaf"))

	c, err := array.Reserve(l, WaitExclusive, Site{File: "btree.go", Line: 42})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	long := array.LongWaits(time.Millisecond)
	require.Len(t, long, 1)
	require.Equal(t, "leaf", long[0].LatchName)
	require.Equal(t, 1, logs.FilterMessage("rwlatch: long latch wait").Len())
	require.Empty(t, array.LongWaits(time.Hour))

	var b bytes.Buffer
	array.Print(&b)
	require.Contains(t, b.String(), "1/4 cells reserved")
	require.Contains(t, b.String(), `waits exclusive on latch`)
	require.Contains(t, b.String(), "btree.go:42")

	array.Free(c)
	l.Destroy()
}

func TestWaitMode_String(t *testing.T) {
	require.Equal(t, "shared|exclusive", (WaitShared | WaitExclusive).String())
	require.Equal(t, "pending-exclusive", WaitPendingExclusive.String())
	require.Equal(t, "none", WaitMode(0).String())
}
