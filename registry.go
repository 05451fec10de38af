package rwlatch

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"sync/atomic"

	"github.com/llxisdsh/pb"
)

// Registry is the set of live latches that PrintAll walks. Latches join
// one in New and leave it in Destroy.
//
// Independent registries keep unrelated latch pools apart, e.g. in tests.
type Registry struct {
	_       noCopy
	latches pb.MapOf[uint64, *Latch]
	seq     atomic.Uint64
	// mu serializes dumps so that concurrent PrintAll calls do not
	// interleave their output.
	mu ticketLock
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry { return defaultRegistry }

func (r *Registry) add(l *Latch) uint64 {
	id := r.seq.Add(1)
	r.latches.Store(id, l)
	return id
}

func (r *Registry) remove(l *Latch) {
	r.latches.Delete(l.id)
}

// Len returns the number of live latches.
func (r *Registry) Len() int {
	return r.latches.Size()
}

// Latches returns the live latches ordered by id.
func (r *Registry) Latches() []*Latch {
	var out []*Latch
	r.latches.Range(func(_ uint64, l *Latch) bool {
		out = append(out, l)
		return true
	})
	slices.SortFunc(out, func(a, b *Latch) int { return cmp.Compare(a.id, b.id) })
	return out
}

// PrintAll dumps every live latch, its state and its ledger to w.
func (r *Registry) PrintAll(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latches := r.Latches()
	fmt.Fprintf(w, "%d live latches\n", len(latches))
	for _, l := range latches {
		l.Dump(w)
	}
}

// PrintAll dumps every latch of the default registry to w.
func PrintAll(w io.Writer) {
	defaultRegistry.PrintAll(w)
}
