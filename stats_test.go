package rwlatch

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	c := newCounter()
	require.NotZero(t, len(c.stripes))
	require.Zero(t, len(c.stripes)&(len(c.stripes)-1))
	for range 1000 {
		c.add(3)
	}
	c.add(0)
	require.EqualValues(t, 3000, c.load())
}

func TestStats_CountParks(t *testing.T) {
	stats := NewStats()
	l, _ := testLatch(t, DiagOff, WithStats(stats), WithSpinRounds(1))
	defer l.Destroy()

	l.Lock()
	done := make(chan struct{})
	go func() {
		l.RLock()
		l.RUnlock()
		close(done)
	}()
	waitFor(t, "reader to park", func() bool { return l.OSWaits() > 0 })
	l.Unlock()
	within(t, "reader to finish", done)

	snap := stats.Snapshot()
	require.NotZero(t, snap.Shared.SpinWaits)
	require.NotZero(t, snap.Shared.OSWaits)
	require.Zero(t, snap.Exclusive.SpinWaits)
	require.Equal(t, snap.Shared.SpinWaits, snap.SpinWaitCount())
	require.Equal(t, snap.Shared.OSWaits, snap.OSWaitCount())
	require.Equal(t, snap.Shared.SpinRounds, snap.SpinRoundCount())
}

func TestStatsCollector(t *testing.T) {
	stats := NewStats()
	registry := NewRegistry()
	array := NewSyncArray(8, nil)
	l := New(DiagOff, array, nil, WithStats(stats), WithRegistry(registry), WithSpinRounds(0))
	defer l.Destroy()

	c := NewStatsCollector("test", stats, registry, array)
	require.Equal(t, 8, testutil.CollectAndCount(c))
	require.Equal(t, 6, testutil.CollectAndCount(NewStatsCollector("test", stats, nil, nil)))

	l.Lock()
	done := make(chan struct{})
	go func() {
		l.Lock()
		l.Unlock()
		close(done)
	}()
	waitFor(t, "writer to park", func() bool { return l.OSWaits() > 0 })
	l.Unlock()
	within(t, "writer to finish", done)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	expected := `
# HELP test_latch_live Latches currently registered.
# TYPE test_latch_live gauge
test_latch_live 1
# HELP test_latch_os_waits_total Parks on a latch wait cell.
# TYPE test_latch_os_waits_total counter
test_latch_os_waits_total{mode="exclusive"} 1
test_latch_os_waits_total{mode="shared"} 0
# HELP test_latch_wait_cells_reserved Wait cells currently reserved in the sync array.
# TYPE test_latch_wait_cells_reserved gauge
test_latch_wait_cells_reserved 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"test_latch_live", "test_latch_os_waits_total", "test_latch_wait_cells_reserved"))
}
