package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/llxisdsh/rwlatch"
	"github.com/llxisdsh/rwlatch/internal/stress"
)

func printResult(w io.Writer, res stress.Result, snap rwlatch.StatsSnapshot) {
	secs := res.Elapsed.Seconds()
	if secs == 0 {
		secs = 1
	}
	fmt.Fprintf(w, "%d ops in %s (%.0f ops/s)\n", res.Ops(), res.Elapsed, float64(res.Ops())/secs)
	fmt.Fprintf(w, "  shared %d, exclusive %d, recursive %d, hand-offs %d, moves %d\n",
		res.Shared, res.Exclusive, res.Recursive, res.Handoffs, res.Moves)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "mode\tspin waits\tspin rounds\tos waits\trounds/wait\t")
	for _, m := range []struct {
		name string
		s    rwlatch.ModeStats
	}{
		{"shared", snap.Shared},
		{"exclusive", snap.Exclusive},
		{"total", rwlatch.ModeStats{
			SpinWaits:  snap.SpinWaitCount(),
			SpinRounds: snap.SpinRoundCount(),
			OSWaits:    snap.OSWaitCount(),
		}},
	} {
		var per float64
		if m.s.SpinWaits > 0 {
			per = float64(m.s.SpinRounds) / float64(m.s.SpinWaits)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\t\n", m.name, m.s.SpinWaits, m.s.SpinRounds, m.s.OSWaits, per)
	}
	tw.Flush()
}
