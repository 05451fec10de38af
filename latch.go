package rwlatch

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/llxisdsh/pb"
	"go.uber.org/zap"

	"github.com/llxisdsh/rwlatch/internal/opt"
)

// Latch is a hybrid spin-then-block reader-writer latch for short critical
// sections over shared in-memory structures such as index pages.
//
// The whole lock state lives in one atomic word (see Free). Acquirers first
// try a single atomic operation, then spin on the word for a bounded number
// of rounds, and finally park on a cell of the WaitQueue until a release
// signals them. Wakeups are advisory: every woken acquirer re-checks the
// word before it proceeds.
//
// Properties:
//   - Writer-preferred: once a writer has reserved the latch, new readers
//     wait until it is done, while readers already inside drain.
//   - Recursive: the exclusive owner may call Lock again and must call Unlock
//     as many times.
//   - Hand-off: an owner can issue a single-use Ticket that lets another
//     goroutine queue for the next exclusive hold, or move its hold to
//     another goroutine with MoveOwnership.
//   - No FIFO among waiters, no timeouts.
//
// A Latch must be created with New and released with Destroy.
type Latch struct {
	_ noCopy

	word atomic.Int64
	// waiters is set by an acquirer before its final attempt ahead of
	// parking, and cleared by the release that returns the word to Free,
	// right before it signals.
	waiters atomic.Bool
	// recursive is set after writer is published and cleared before the
	// final exclusive release gives the word back, so a true recursive
	// always comes with a trustworthy writer.
	recursive atomic.Bool
	writer    atomic.Uint64

	tickets    pb.MapOf[uint64, struct{}] // serials issued and not yet redeemed
	handoffSeq atomic.Uint64
	osWaits    atomic.Uint64
	destroyed  atomic.Bool

	lastShared    atomic.Pointer[Site]
	lastExclusive atomic.Pointer[Site]

	id         uint64
	name       string
	created    Site
	level      DiagLevel
	spinRounds int
	spinDelay  int
	wq         WaitQueue
	ids        Identity
	stats      *Stats
	registry   *Registry
	logger     *zap.Logger
	ledger     *ledger
}

// New creates a free latch and registers it for PrintAll.
//
// A nil wq selects DefaultSyncArray() and a nil ids selects
// GoroutineIdentity. Building with the rwlatch_debug tag raises level to
// DiagLedger.
func New(
	level DiagLevel,
	wq WaitQueue,
	ids Identity,
	options ...func(*Config),
) *Latch {
	cfg := defaultConfig()
	for _, o := range options {
		o(&cfg)
	}
	if wq == nil {
		wq = DefaultSyncArray()
	}
	if ids == nil {
		ids = GoroutineIdentity{}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.registry == nil {
		cfg.registry = DefaultRegistry()
	}
	if cfg.stats == nil {
		cfg.stats = DefaultStats()
	}
	if opt.Debug_ && level < DiagLedger {
		level = DiagLedger
	}

	l := &Latch{
		name:       cfg.name,
		level:      level,
		spinRounds: cfg.spinRounds,
		spinDelay:  cfg.spinDelay,
		wq:         wq,
		ids:        ids,
		stats:      cfg.stats,
		registry:   cfg.registry,
		logger:     cfg.logger,
	}
	if level >= DiagChecks {
		l.created = callerSite(1)
	}
	if level >= DiagLedger {
		l.ledger = &ledger{}
	}
	l.word.Store(Free)
	l.id = l.registry.add(l)
	return l
}

// Destroy unregisters the latch. The latch must be free; destroying a held
// latch, or destroying it twice, is fatal.
func (l *Latch) Destroy() {
	site := l.callSite()
	if !l.destroyed.CompareAndSwap(false, true) {
		l.fatal(ProgrammerError, "Destroy", site, ErrDestroyed)
	}
	if w := l.word.Load(); w != Free {
		l.destroyed.Store(false)
		l.fatal(ProgrammerError, "Destroy", site, ErrOutstandingHolders)
	}
	if l.ledger != nil && l.ledger.len() != 0 {
		l.destroyed.Store(false)
		l.fatal(ProgrammerError, "Destroy", site, ErrOutstandingHolders)
	}
	l.registry.remove(l)
}

// ID returns the identifier the latch got from its registry.
func (l *Latch) ID() uint64 { return l.id }

// Name returns the label set with WithName.
func (l *Latch) Name() string { return l.name }

// OSWaits returns how many times an acquirer parked on this latch.
func (l *Latch) OSWaits() uint64 { return l.osWaits.Load() }

// LastShared returns where the most recent shared hold was taken.
// Sites are recorded from DiagChecks upwards.
func (l *Latch) LastShared() Site {
	if p := l.lastShared.Load(); p != nil {
		return *p
	}
	return Site{}
}

// LastExclusive returns where the most recent exclusive hold was taken.
func (l *Latch) LastExclusive() Site {
	if p := l.lastExclusive.Load(); p != nil {
		return *p
	}
	return Site{}
}

// State returns a decoded snapshot of the latch. The fields are read one
// after another, so under concurrent use they may not agree.
func (l *Latch) State() State {
	s := decodeState(l.word.Load())
	s.Waiters = l.waiters.Load()
	s.Recursive = l.recursive.Load()
	if s.Recursive {
		s.Writer = ThreadID(l.writer.Load())
	}
	return s
}

// Holders returns the ledger entries of the current holders, oldest first.
// It returns nil below DiagLedger.
func (l *Latch) Holders() []DebugEntry {
	if l.ledger == nil {
		return nil
	}
	return l.ledger.snapshot()
}

func (l *Latch) String() string {
	s := fmt.Sprintf("latch %d", l.id)
	if l.name != "" {
		s += fmt.Sprintf(" %q", l.name)
	}
	return s
}

// Dump writes the latch state, its last acquisition sites and, when a
// ledger is kept, its holders.
func (l *Latch) Dump(w io.Writer) {
	fmt.Fprintf(w, "%s", l)
	if !l.created.IsZero() {
		fmt.Fprintf(w, " created at %s", l.created)
	}
	fmt.Fprintf(w, ": %s os_waits=%d\n", l.State(), l.OSWaits())
	if s := l.LastShared(); !s.IsZero() {
		fmt.Fprintf(w, "  last shared at %s\n", s)
	}
	if s := l.LastExclusive(); !s.IsZero() {
		fmt.Fprintf(w, "  last exclusive at %s\n", s)
	}
	if l.ledger != nil {
		dumpEntries(w, l.ledger.snapshot())
	}
}

// callSite returns the location of the caller of the exported method that
// calls it, or the zero Site below DiagChecks.
func (l *Latch) callSite() Site {
	if l.level < DiagChecks {
		return Site{}
	}
	return callerSite(2)
}

func (l *Latch) checkAlive(op string, site Site) {
	if l.destroyed.Load() {
		l.fatal(ProgrammerError, op, site, ErrDestroyed)
	}
}

// ownedBy reports whether id holds the latch exclusively. recursive is
// read first: once it is true, writer is the published owner.
func (l *Latch) ownedBy(id ThreadID) bool {
	return l.recursive.Load() && l.ids.Equal(ThreadID(l.writer.Load()), id)
}

// setWriter publishes the new exclusive owner. The word has already been
// decremented by the caller.
func (l *Latch) setWriter(id ThreadID) {
	l.writer.Store(uint64(id))
	l.recursive.Store(true)
}

// reserve gets a wait cell or aborts: a latch cannot fail an acquisition.
func (l *Latch) reserve(mode WaitMode, site Site) *WaitCell {
	c, err := l.wq.Reserve(l, mode, site)
	if err != nil {
		l.fatal(ResourceExhaustion, "reserve "+mode.String(), site, err)
	}
	return c
}

// park blocks on a reserved cell and gives it back.
func (l *Latch) park(c *WaitCell, ms *modeStats) {
	ms.osWaits.add(1)
	l.osWaits.Add(1)
	l.wq.Wait(c)
	l.wq.Free(c)
}

func (l *Latch) granted(mode Mode, id ThreadID, site Site, ticket uint64) {
	if l.level < DiagChecks {
		return
	}
	if mode == ModeShared {
		l.lastShared.Store(&site)
	} else {
		l.lastExclusive.Store(&site)
	}
	if l.ledger != nil {
		if id == 0 {
			id = l.ids.Current()
		}
		l.ledger.add(DebugEntry{Thread: id, Site: site, Mode: mode, Ticket: ticket})
	}
}
