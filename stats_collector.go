package rwlatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsCollector exports Stats, and optionally the size of a Registry and
// a SyncArray, as Prometheus metrics.
type StatsCollector struct {
	stats    *Stats
	registry *Registry
	array    *SyncArray

	spinWaits  *prometheus.Desc
	spinRounds *prometheus.Desc
	osWaits    *prometheus.Desc
	latches    *prometheus.Desc
	cells      *prometheus.Desc
}

// NewStatsCollector describes s under namespace. registry and array may be
// nil, which leaves their gauges out.
func NewStatsCollector(
	namespace string,
	s *Stats,
	registry *Registry,
	array *SyncArray,
) *StatsCollector {
	mode := []string{"mode"}
	return &StatsCollector{
		stats:    s,
		registry: registry,
		array:    array,
		spinWaits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "latch", "spin_waits_total"),
			"Latch acquisitions that missed the lock-free fast path.",
			mode, nil,
		),
		spinRounds: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "latch", "spin_rounds_total"),
			"Busy-wait rounds spent polling latch words.",
			mode, nil,
		),
		osWaits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "latch", "os_waits_total"),
			"Parks on a latch wait cell.",
			mode, nil,
		),
		latches: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "latch", "live"),
			"Latches currently registered.",
			nil, nil,
		),
		cells: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "latch", "wait_cells_reserved"),
			"Wait cells currently reserved in the sync array.",
			nil, nil,
		),
	}
}

func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.spinWaits
	ch <- c.spinRounds
	ch <- c.osWaits
	if c.registry != nil {
		ch <- c.latches
	}
	if c.array != nil {
		ch <- c.cells
	}
}

func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()
	for _, m := range []struct {
		label string
		stats ModeStats
	}{
		{ModeShared.String(), snap.Shared},
		{ModeExclusive.String(), snap.Exclusive},
	} {
		ch <- prometheus.MustNewConstMetric(c.spinWaits, prometheus.CounterValue,
			float64(m.stats.SpinWaits), m.label)
		ch <- prometheus.MustNewConstMetric(c.spinRounds, prometheus.CounterValue,
			float64(m.stats.SpinRounds), m.label)
		ch <- prometheus.MustNewConstMetric(c.osWaits, prometheus.CounterValue,
			float64(m.stats.OSWaits), m.label)
	}
	if c.registry != nil {
		ch <- prometheus.MustNewConstMetric(c.latches, prometheus.GaugeValue,
			float64(c.registry.Len()))
	}
	if c.array != nil {
		ch <- prometheus.MustNewConstMetric(c.cells, prometheus.GaugeValue,
			float64(c.array.Len()))
	}
}
