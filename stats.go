package rwlatch

import (
	"math/bits"
	"math/rand/v2"
	"runtime"
	"sync/atomic"

	"github.com/llxisdsh/rwlatch/internal/opt"
)

// counter is a monotonic counter striped over cache lines, so that
// goroutines spinning on different latches do not fight over one word.
type counter struct {
	stripes []opt.CounterStripe_
	mask    uint32
}

func newCounter() counter {
	n := 1 << bits.Len(uint(runtime.GOMAXPROCS(0)-1))
	return counter{
		stripes: make([]opt.CounterStripe_, n),
		mask:    uint32(n - 1),
	}
}

func (c *counter) add(n uint64) {
	if n == 0 {
		return
	}
	atomic.AddUint64(&c.stripes[rand.Uint32()&c.mask].C, n)
}

func (c *counter) load() uint64 {
	var sum uint64
	for i := range c.stripes {
		sum += atomic.LoadUint64(&c.stripes[i].C)
	}
	return sum
}

type modeStats struct {
	spinWaits  counter
	spinRounds counter
	osWaits    counter
}

func newModeStats() modeStats {
	return modeStats{
		spinWaits:  newCounter(),
		spinRounds: newCounter(),
		osWaits:    newCounter(),
	}
}

func (m *modeStats) snapshot() ModeStats {
	return ModeStats{
		SpinWaits:  m.spinWaits.load(),
		SpinRounds: m.spinRounds.load(),
		OSWaits:    m.osWaits.load(),
	}
}

// Stats accumulates the spin and park counters of every latch created
// with it. Counters only grow.
type Stats struct {
	_         noCopy
	shared    modeStats
	exclusive modeStats
}

// NewStats creates an empty set of counters.
func NewStats() *Stats {
	return &Stats{
		shared:    newModeStats(),
		exclusive: newModeStats(),
	}
}

var defaultStats = NewStats()

// DefaultStats returns the process-wide counters.
func DefaultStats() *Stats { return defaultStats }

// ModeStats are the counters of one acquisition mode.
type ModeStats struct {
	// SpinWaits counts acquisitions that missed the fast path.
	SpinWaits uint64
	// SpinRounds counts busy-wait rounds, summed over all such acquisitions.
	SpinRounds uint64
	// OSWaits counts parks on a wait cell.
	OSWaits uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Shared    ModeStats
	Exclusive ModeStats
}

func (s StatsSnapshot) SpinWaitCount() uint64 {
	return s.Shared.SpinWaits + s.Exclusive.SpinWaits
}

func (s StatsSnapshot) SpinRoundCount() uint64 {
	return s.Shared.SpinRounds + s.Exclusive.SpinRounds
}

func (s StatsSnapshot) OSWaitCount() uint64 {
	return s.Shared.OSWaits + s.Exclusive.OSWaits
}

// Snapshot reads the counters. Stripes are summed one by one, so a
// snapshot taken under load is approximate.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Shared:    s.shared.snapshot(),
		Exclusive: s.exclusive.snapshot(),
	}
}
