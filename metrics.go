package framepool

import "github.com/prometheus/client_golang/prometheus"

const metricNamespace = "framepool"

var (
	descAllocatedBytes = newDesc("allocated_bytes", "Bytes outstanding or pooled across all frame pools.")
	descBudgetBytes    = newDesc("budget_bytes", "Enforced memory budget across all frame pools.")
	descFreeFrames     = newDesc("free_frames", "Frames held in free lists.")
	descReuses         = newDesc("reuses_total", "Frame requests served from a free list.")
	descAllocations    = newDesc("allocations_total", "Fresh frames requested from the allocation context.")
	descMerges         = newDesc("merges_total", "Frame requests served by merging pooled frames.")
	descExhaustions    = newDesc("exhaustions_total", "Frame requests that exhausted their pool.")
	descDeallocations  = newDesc("deallocations_total", "Frames returned to the allocation context.")
)

func newDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(metricNamespace, "", name), help, nil, nil)
}

type collector struct {
	m *Manager
}

// NewCollector returns a collector exporting the aggregated stats of all pools registered with m.
func NewCollector(m *Manager) prometheus.Collector {
	return &collector{m: m}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descAllocatedBytes
	ch <- descBudgetBytes
	ch <- descFreeFrames
	ch <- descReuses
	ch <- descAllocations
	ch <- descMerges
	ch <- descExhaustions
	ch <- descDeallocations
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	var s Stats
	c.m.UpdateStats(&s)

	ch <- prometheus.MustNewConstMetric(descAllocatedBytes, prometheus.GaugeValue, float64(s.AllocatedBytes))
	ch <- prometheus.MustNewConstMetric(descBudgetBytes, prometheus.GaugeValue, float64(s.BudgetBytes))
	ch <- prometheus.MustNewConstMetric(descFreeFrames, prometheus.GaugeValue, float64(s.FreeFrames))
	ch <- prometheus.MustNewConstMetric(descReuses, prometheus.CounterValue, float64(s.Reuses))
	ch <- prometheus.MustNewConstMetric(descAllocations, prometheus.CounterValue, float64(s.Allocations))
	ch <- prometheus.MustNewConstMetric(descMerges, prometheus.CounterValue, float64(s.Merges))
	ch <- prometheus.MustNewConstMetric(descExhaustions, prometheus.CounterValue, float64(s.Exhaustions))
	ch <- prometheus.MustNewConstMetric(descDeallocations, prometheus.CounterValue, float64(s.Deallocations))
}
