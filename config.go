package rwlatch

import (
	"go.uber.org/zap"
)

// ============================================================================
// Configuration
// ============================================================================

const (
	// DefaultSpinRounds is the number of busy-wait rounds a blocked
	// acquirer polls the lock word before it parks.
	DefaultSpinRounds = 30
	// DefaultSpinDelay bounds the random number of CPU pause loops
	// between two polls of the lock word.
	DefaultSpinDelay = 6
)

// DiagLevel selects how much a latch checks and records about its callers.
type DiagLevel uint8

const (
	// DiagOff keeps only the checks the lock word itself can answer.
	DiagOff DiagLevel = iota
	// DiagChecks also records acquisition sites and verifies that exclusive
	// releases, hand-offs and ownership moves come from the owner.
	DiagChecks
	// DiagLedger also keeps a ledger of every current holder.
	DiagLedger
)

func (d DiagLevel) String() string {
	switch d {
	case DiagOff:
		return "off"
	case DiagChecks:
		return "checks"
	case DiagLedger:
		return "ledger"
	default:
		return "unknown"
	}
}

// Config defines the optional settings of a latch.
type Config struct {
	// spinRounds is the spin budget before parking. Zero parks at once
	// after the first failed attempt.
	spinRounds int

	// spinDelay bounds the random pause between two polls while spinning.
	spinDelay int

	// logger receives the structured record written before a fatal panic.
	// Nil means zap.NewNop().
	logger *zap.Logger

	// registry the latch joins for PrintAll. Nil means DefaultRegistry().
	registry *Registry

	// stats accumulates spin and park counters. Nil means DefaultStats().
	stats *Stats

	// name shows up in dumps and fatal diagnostics.
	name string
}

func defaultConfig() Config {
	return Config{
		spinRounds: DefaultSpinRounds,
		spinDelay:  DefaultSpinDelay,
	}
}

// WithSpinRounds sets the number of spin rounds before a blocked acquirer
// parks. Negative values are treated as zero.
func WithSpinRounds(n int) func(*Config) {
	return func(c *Config) {
		c.spinRounds = max(n, 0)
	}
}

// WithSpinDelay bounds the random number of pause loops between two polls
// of the lock word while spinning.
func WithSpinDelay(n int) func(*Config) {
	return func(c *Config) {
		c.spinDelay = max(n, 0)
	}
}

// WithLogger sets the logger fatal diagnostics are written to.
func WithLogger(logger *zap.Logger) func(*Config) {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithRegistry makes the latch join r instead of the default registry.
func WithRegistry(r *Registry) func(*Config) {
	return func(c *Config) {
		c.registry = r
	}
}

// WithStats makes the latch count into s instead of the default stats.
func WithStats(s *Stats) func(*Config) {
	return func(c *Config) {
		c.stats = s
	}
}

// WithName labels the latch in dumps and diagnostics.
func WithName(name string) func(*Config) {
	return func(c *Config) {
		c.name = name
	}
}
