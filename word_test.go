package rwlatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeState(t *testing.T) {
	tests := []struct {
		name string
		word int64
		want State
	}{
		{"free", Free, State{Word: Free, Legal: true}},
		{"one reader", Free - 1, State{Word: Free - 1, Readers: 1, Legal: true}},
		{"many readers", 1, State{Word: 1, Readers: Free - 1, Legal: true}},
		{"exclusive", 0, State{Word: 0, Holds: 1, Legal: true}},
		{"draining", -3, State{Word: -3, Readers: 3, Reserved: true, Legal: true}},
		{"recursive", -2 * Free, State{Word: -2 * Free, Holds: 3, Legal: true}},
		{"above free", Free + 1, State{Word: Free + 1}},
		{"between recursion levels", -Free - 1, State{Word: -Free - 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, decodeState(tt.word))
		})
	}
}

func TestState_String(t *testing.T) {
	require.Equal(t, "word=0x20000000 (free) waiters=false", decodeState(Free).String())
	require.Contains(t, decodeState(Free-2).String(), "shared x2")
	require.Contains(t, decodeState(-Free).String(), "exclusive x2")
	require.Contains(t, decodeState(-1).String(), "reserved, draining 1 readers")
	require.Contains(t, decodeState(Free+5).String(), "corrupt")

	s := decodeState(0)
	s.Recursive = true
	s.Writer = 7
	require.Contains(t, s.String(), "writer=goroutine 7")
}

func TestLatch_Decrement(t *testing.T) {
	l, _ := testLatch(t, DiagOff)
	defer l.Destroy()

	// Shared holds keep one unit of headroom.
	l.word.Store(2)
	require.True(t, l.tryRDecrement())
	require.EqualValues(t, 1, l.word.Load())
	require.False(t, l.tryRDecrement())
	require.EqualValues(t, 1, l.word.Load())

	// A writer may reserve while readers are inside, but not twice.
	l.word.Store(Free - 2)
	require.True(t, l.tryXDecrement())
	require.EqualValues(t, -2, l.word.Load())
	require.False(t, l.tryXDecrement())
	require.False(t, l.tryRDecrement())
	require.False(t, l.tryXFromFree())

	l.word.Store(Free - 1)
	require.False(t, l.tryXFromFree())
	l.word.Store(Free)
	require.True(t, l.tryXFromFree())
	require.Zero(t, l.word.Load())
	require.EqualValues(t, Free, l.incrementBy(Free))
}
