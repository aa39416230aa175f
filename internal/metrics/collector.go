package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"firestige.xyz/actionengine/internal/stateful"
)

var (
	counterBytesDesc = prometheus.NewDesc(
		"actionengine_counter_bytes",
		"Bytes counted by a counter array index",
		[]string{"array", "index"}, nil,
	)
	counterPacketsDesc = prometheus.NewDesc(
		"actionengine_counter_packets",
		"Packets counted by a counter array index",
		[]string{"array", "index"}, nil,
	)
)

// CounterCollector exports the cells of counter arrays. Cells that were
// never hit are skipped.
type CounterCollector struct {
	arrays func() []*stateful.CounterArray
}

// NewCounterCollector builds a collector reading arrays on every scrape.
func NewCounterCollector(arrays func() []*stateful.CounterArray) *CounterCollector {
	return &CounterCollector{arrays: arrays}
}

func (c *CounterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- counterBytesDesc
	ch <- counterPacketsDesc
}

func (c *CounterCollector) Collect(ch chan<- prometheus.Metric) {
	for _, a := range c.arrays() {
		for i, v := range a.Snapshot() {
			if v.Packets == 0 {
				continue
			}
			idx := strconv.Itoa(i)
			ch <- prometheus.MustNewConstMetric(counterBytesDesc, prometheus.CounterValue, float64(v.Bytes), a.Name(), idx)
			ch <- prometheus.MustNewConstMetric(counterPacketsDesc, prometheus.CounterValue, float64(v.Packets), a.Name(), idx)
		}
	}
}
