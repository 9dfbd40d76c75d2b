package monitor

import "github.com/prometheus/client_golang/prometheus"

// StatsSource is anything exposing counters worth scraping. The engine
// and the learning engine both implement it.
type StatsSource interface {
	// StatsCounters returns counter values keyed by metric-safe names.
	StatsCounters() map[string]uint64
}

// Collector exposes monitor and engine statistics as Prometheus
// metrics. It is read-only observability; the core never formats
// human-readable output.
type Collector struct {
	monitor *ResourceMonitor
	sources map[string]StatsSource

	memoryDesc      *prometheus.Desc
	compactionsDesc *prometheus.Desc
	counterDesc     *prometheus.Desc
}

// NewCollector creates a collector over the monitor plus any number of
// named stats sources.
func NewCollector(m *ResourceMonitor, sources map[string]StatsSource) *Collector {
	return &Collector{
		monitor: m,
		sources: sources,
		memoryDesc: prometheus.NewDesc(
			"faultline_memory_bytes",
			"Current heap allocation in bytes.",
			nil, nil),
		compactionsDesc: prometheus.NewDesc(
			"faultline_compactions_total",
			"Advisory compaction passes run.",
			nil, nil),
		counterDesc: prometheus.NewDesc(
			"faultline_stat",
			"Component statistic counters.",
			[]string{"component", "stat"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.memoryDesc
	ch <- c.compactionsDesc
	ch <- c.counterDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.monitor != nil {
		ch <- prometheus.MustNewConstMetric(c.memoryDesc, prometheus.GaugeValue,
			float64(c.monitor.MemoryUsage()))
		ch <- prometheus.MustNewConstMetric(c.compactionsDesc, prometheus.CounterValue,
			float64(c.monitor.Compactions()))
	}
	for component, src := range c.sources {
		for stat, v := range src.StatsCounters() {
			ch <- prometheus.MustNewConstMetric(c.counterDesc, prometheus.CounterValue,
				float64(v), component, stat)
		}
	}
}
