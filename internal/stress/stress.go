// Package stress drives latches with a randomized multi-goroutine workload
// and checks that every hold it gets is honoured.
package stress

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/llxisdsh/rwlatch"
)

// Config describes a workload. Percentages are of all operations and are
// drawn in the order exclusive, recursive, hand-off, move; the rest are
// shared holds.
type Config struct {
	Goroutines int
	Latches    int
	Ops        int // per goroutine

	ExclusivePercent int
	RecursivePercent int
	HandoffPercent   int
	MovePercent      int

	Level      rwlatch.DiagLevel
	SpinRounds int
	Seed       uint64
}

// DefaultConfig returns a write-heavy workload over a few hot latches.
func DefaultConfig() Config {
	return Config{
		Goroutines:       2 * runtime.GOMAXPROCS(0),
		Latches:          4,
		Ops:              20000,
		ExclusivePercent: 20,
		RecursivePercent: 5,
		HandoffPercent:   2,
		MovePercent:      2,
		Level:            rwlatch.DiagOff,
		SpinRounds:       rwlatch.DefaultSpinRounds,
		Seed:             1,
	}
}

// Result counts what a run did.
type Result struct {
	Shared    uint64
	Exclusive uint64
	Recursive uint64
	Handoffs  uint64
	Moves     uint64
	Elapsed   time.Duration
}

// Ops returns the number of completed operations.
func (r Result) Ops() uint64 {
	return r.Shared + r.Exclusive + r.Recursive + r.Handoffs + r.Moves
}

// page is the data one latch protects. Writers keep a and b equal; a reader
// seeing them differ, or seeing a writer inside, found a broken hold.
type page struct {
	latch   *rwlatch.Latch
	a, b    int64
	writers atomic.Int32
	readers atomic.Int32
}

// Runner owns the latches of a workload.
type Runner struct {
	cfg    Config
	logger *zap.Logger
	pages  []*page

	shared, exclusive, recursive, handoffs, moves atomic.Uint64
}

// NewRunner creates cfg.Latches latches with the given options. The caller
// must Close the runner to destroy them.
func NewRunner(cfg Config, logger *zap.Logger, options ...func(*rwlatch.Config)) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Goroutines = max(cfg.Goroutines, 1)
	cfg.Latches = max(cfg.Latches, 1)
	r := &Runner{cfg: cfg, logger: logger}
	options = append([]func(*rwlatch.Config){
		rwlatch.WithSpinRounds(cfg.SpinRounds),
		rwlatch.WithLogger(logger),
	}, options...)
	for i := 0; i < cfg.Latches; i++ {
		opts := append(options[:len(options):len(options)], rwlatch.WithName(fmt.Sprintf("page-%d", i)))
		r.pages = append(r.pages, &page{latch: rwlatch.New(cfg.Level, nil, nil, opts...)})
	}
	return r
}

// Latches returns the latches driven by the runner.
func (r *Runner) Latches() []*rwlatch.Latch {
	ls := make([]*rwlatch.Latch, len(r.pages))
	for i, p := range r.pages {
		ls[i] = p.latch
	}
	return ls
}

// Close destroys the latches.
func (r *Runner) Close() {
	for _, p := range r.pages {
		p.latch.Destroy()
	}
}

// Run executes the workload and returns at the first broken hold, or when
// ctx is done.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < r.cfg.Goroutines; w++ {
		rng := rand.New(rand.NewPCG(r.cfg.Seed, uint64(w)))
		g.Go(func() error {
			for i := 0; i < r.cfg.Ops; i++ {
				if i%256 == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				if err := r.step(rng); err != nil {
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()
	res := Result{
		Shared:    r.shared.Load(),
		Exclusive: r.exclusive.Load(),
		Recursive: r.recursive.Load(),
		Handoffs:  r.handoffs.Load(),
		Moves:     r.moves.Load(),
		Elapsed:   time.Since(start),
	}
	r.logger.Info("stress run finished",
		zap.Uint64("ops", res.Ops()),
		zap.Duration("elapsed", res.Elapsed),
		zap.Error(err),
	)
	return res, err
}

func (r *Runner) step(rng *rand.Rand) error {
	p := r.pages[rng.IntN(len(r.pages))]
	n := rng.IntN(100)
	switch {
	case n < r.cfg.ExclusivePercent:
		r.exclusive.Add(1)
		return p.write(1)
	case n < r.cfg.ExclusivePercent+r.cfg.RecursivePercent:
		r.recursive.Add(1)
		return p.writeRecursive(1 + rng.IntN(3))
	case n < r.cfg.ExclusivePercent+r.cfg.RecursivePercent+r.cfg.HandoffPercent:
		r.handoffs.Add(1)
		return p.handoff()
	case n < r.cfg.ExclusivePercent+r.cfg.RecursivePercent+r.cfg.HandoffPercent+r.cfg.MovePercent:
		r.moves.Add(1)
		return p.move()
	default:
		r.shared.Add(1)
		return p.read()
	}
}

func (p *page) read() error {
	p.latch.RLock()
	defer p.latch.RUnlock()
	p.readers.Add(1)
	defer p.readers.Add(-1)
	if n := p.writers.Load(); n != 0 {
		return errors.Errorf("%s: %d writers inside a shared hold", p.latch, n)
	}
	if a, b := atomic.LoadInt64(&p.a), atomic.LoadInt64(&p.b); a != b {
		return errors.Errorf("%s: torn page under shared hold: %d != %d", p.latch, a, b)
	}
	return nil
}

// mutate runs under an exclusive hold.
func (p *page) mutate() error {
	if n := p.writers.Add(1); n != 1 {
		p.writers.Add(-1)
		return errors.Errorf("%s: %d writers inside an exclusive hold", p.latch, n)
	}
	defer p.writers.Add(-1)
	if n := p.readers.Load(); n != 0 {
		return errors.Errorf("%s: %d readers inside an exclusive hold", p.latch, n)
	}
	atomic.AddInt64(&p.a, 1)
	runtime.Gosched()
	atomic.AddInt64(&p.b, 1)
	return nil
}

func (p *page) write(n int) error {
	p.latch.Lock()
	defer p.latch.Unlock()
	for i := 0; i < n; i++ {
		if err := p.mutate(); err != nil {
			return err
		}
	}
	return nil
}

// writeRecursive stacks depth extra holds on top of the first one.
func (p *page) writeRecursive(depth int) error {
	p.latch.Lock()
	defer p.latch.Unlock()
	if depth == 0 {
		return p.mutate()
	}
	if s := p.latch.State(); s.Holds < 1 {
		return errors.Errorf("%s: lost exclusive hold before re-entry: %s", p.latch, s)
	}
	return p.writeRecursive(depth - 1)
}

// handoff gives a ticket for the next hold to a helper goroutine, which
// must get the latch only after the owner released it.
func (p *page) handoff() error {
	p.latch.Lock()
	t := p.latch.PrepareHandoff()
	errc := make(chan error, 1)
	go func() {
		p.latch.LockWithTicket(t)
		defer p.latch.Unlock()
		errc <- p.mutate()
	}()
	err := p.mutate()
	p.latch.Unlock()
	if herr := <-errc; err == nil {
		err = herr
	}
	return err
}

// move transfers an exclusive hold to a helper goroutine that releases it.
func (p *page) move() error {
	p.latch.Lock()
	ids := make(chan rwlatch.ThreadID)
	moved := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		ids <- rwlatch.GoroutineIdentity{}.Current()
		<-moved
		defer p.latch.Unlock()
		errc <- p.mutate()
	}()
	p.latch.MoveOwnership(<-ids)
	close(moved)
	return <-errc
}
