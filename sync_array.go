package rwlatch

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/llxisdsh/rwlatch/internal/opt"
)

// DefaultSyncArraySize is the number of cells of the default SyncArray.
const DefaultSyncArraySize = 1 << 16

// WaitCell binds one parking attempt of a goroutine to a latch.
type WaitCell struct {
	latch    *Latch
	mode     WaitMode
	thread   ThreadID
	site     Site
	reserved time.Time
	slot     int

	// signalled is guarded by the SyncArray lock.
	signalled bool
	sema      opt.Sema
}

func (c *WaitCell) Latch() *Latch       { return c.latch }
func (c *WaitCell) Mode() WaitMode      { return c.mode }
func (c *WaitCell) Thread() ThreadID    { return c.thread }
func (c *WaitCell) Site() Site          { return c.site }
func (c *WaitCell) Reserved() time.Time { return c.reserved }

// CellInfo is a snapshot of a reserved cell.
type CellInfo struct {
	Latch     uint64
	LatchName string
	Mode      WaitMode
	Thread    ThreadID
	Site      Site
	Waiting   time.Duration
	Signalled bool
}

// SyncArray is the default WaitQueue: a bounded array of wait cells, each
// with its own semaphore, indexed by latch.
//
// Signalling happens under the array lock and marks the cell, so a cell
// freed without waiting never swallows a wakeup meant for another cell.
type SyncArray struct {
	_ noCopy

	mu      ticketLock
	cells   []*WaitCell
	free    []int
	byLatch map[*Latch][]*WaitCell

	reservations atomic.Uint64
	signals      atomic.Uint64
	logger       *zap.Logger
}

// NewSyncArray creates an array of size cells. A nil logger disables the
// long wait warnings.
func NewSyncArray(size int, logger *zap.Logger) *SyncArray {
	if size <= 0 {
		size = DefaultSyncArraySize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &SyncArray{
		cells:   make([]*WaitCell, size),
		free:    make([]int, size),
		byLatch: make(map[*Latch][]*WaitCell),
		logger:  logger,
	}
	for i := range a.free {
		a.free[i] = size - 1 - i
	}
	return a
}

var (
	defaultSyncArrayOnce sync.Once
	defaultSyncArray     *SyncArray
)

// DefaultSyncArray returns the process-wide array latches park on unless
// New is given another WaitQueue.
func DefaultSyncArray() *SyncArray {
	defaultSyncArrayOnce.Do(func() {
		defaultSyncArray = NewSyncArray(DefaultSyncArraySize, nil)
	})
	return defaultSyncArray
}

func (a *SyncArray) Reserve(l *Latch, mode WaitMode, site Site) (*WaitCell, error) {
	c := &WaitCell{
		latch:    l,
		mode:     mode,
		thread:   l.ids.Current(),
		site:     site,
		reserved: time.Now(),
	}
	a.mu.Lock()
	if len(a.free) == 0 {
		a.mu.Unlock()
		return nil, errors.Wrapf(ErrWaitArrayFull,
			"%d cells in use, %s wait on %s", len(a.cells), mode, l)
	}
	c.slot = a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.cells[c.slot] = c
	a.byLatch[l] = append(a.byLatch[l], c)
	a.mu.Unlock()
	a.reservations.Add(1)
	return c, nil
}

func (a *SyncArray) Wait(c *WaitCell) {
	c.sema.Acquire()
}

func (a *SyncArray) Signal(l *Latch, modes WaitMode) {
	var n uint64
	a.mu.Lock()
	for _, c := range a.byLatch[l] {
		if c.mode&modes != 0 && !c.signalled {
			c.signalled = true
			c.sema.Release()
			n++
		}
	}
	a.mu.Unlock()
	if n > 0 {
		a.signals.Add(n)
	}
}

func (a *SyncArray) Free(c *WaitCell) {
	a.mu.Lock()
	if a.cells[c.slot] != c {
		a.mu.Unlock()
		panic(fmt.Sprintf("rwlatch: wait cell %d freed twice", c.slot))
	}
	a.cells[c.slot] = nil
	a.free = append(a.free, c.slot)
	list := a.byLatch[c.latch]
	for i, x := range list {
		if x == c {
			list[i] = list[len(list)-1]
			list[len(list)-1] = nil
			list = list[:len(list)-1]
			break
		}
	}
	if len(list) == 0 {
		delete(a.byLatch, c.latch)
	} else {
		a.byLatch[c.latch] = list
	}
	a.mu.Unlock()
}

// Len returns the number of reserved cells.
func (a *SyncArray) Len() int {
	a.mu.Lock()
	n := len(a.cells) - len(a.free)
	a.mu.Unlock()
	return n
}

// Cap returns the number of cells.
func (a *SyncArray) Cap() int { return len(a.cells) }

// Reservations returns how many cells were ever reserved.
func (a *SyncArray) Reservations() uint64 { return a.reservations.Load() }

// Signals returns how many cells were ever signalled.
func (a *SyncArray) Signals() uint64 { return a.signals.Load() }

// Cells returns a snapshot of the reserved cells, longest waiting first.
func (a *SyncArray) Cells() []CellInfo {
	now := time.Now()
	a.mu.Lock()
	infos := make([]CellInfo, 0, len(a.cells)-len(a.free))
	for _, list := range a.byLatch {
		for _, c := range list {
			infos = append(infos, CellInfo{
				Latch:     c.latch.id,
				LatchName: c.latch.name,
				Mode:      c.mode,
				Thread:    c.thread,
				Site:      c.site,
				Waiting:   now.Sub(c.reserved),
				Signalled: c.signalled,
			})
		}
	}
	a.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Waiting > infos[j].Waiting
	})
	return infos
}

// LongWaits returns the cells reserved for longer than threshold and logs
// a warning for each.
func (a *SyncArray) LongWaits(threshold time.Duration) []CellInfo {
	var long []CellInfo
	for _, info := range a.Cells() {
		if info.Waiting < threshold {
			break
		}
		long = append(long, info)
		a.logger.Warn("rwlatch: long latch wait",
			zap.Uint64("latch", info.Latch),
			zap.String("name", info.LatchName),
			zap.Stringer("mode", info.Mode),
			zap.Stringer("thread", info.Thread),
			zap.Stringer("site", info.Site),
			zap.Duration("waiting", info.Waiting),
		)
	}
	return long
}

// Print writes one line per reserved cell.
func (a *SyncArray) Print(w io.Writer) {
	cells := a.Cells()
	fmt.Fprintf(w, "sync array: %d/%d cells reserved, %d reservations, %d signals\n",
		len(cells), a.Cap(), a.Reservations(), a.Signals())
	for _, c := range cells {
		fmt.Fprintf(w, "  %s waits %s on latch %d", c.Thread, c.Mode, c.Latch)
		if c.LatchName != "" {
			fmt.Fprintf(w, " %q", c.LatchName)
		}
		fmt.Fprintf(w, " from %s for %s", c.Site, c.Waiting.Round(time.Microsecond))
		if c.Signalled {
			fmt.Fprint(w, " (signalled)")
		}
		fmt.Fprintln(w)
	}
}
