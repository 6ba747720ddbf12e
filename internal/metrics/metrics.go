// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exports pipeline counters to Prometheus.
package metrics

import (
	"code.hybscloud.com/daq/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

type metric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(pipeline.Snapshot) float64
}

// Collector reads a Snapshot on every scrape.
type Collector struct {
	snapshot func() pipeline.Snapshot
	metrics  []metric
}

// NewCollector returns a collector for the counters returned by snapshot,
// usually Pipeline.Stats. Metric names are prefixed with namespace.
func NewCollector(namespace string, snapshot func() pipeline.Snapshot) *Collector {
	c := &Collector{snapshot: snapshot}
	counter := func(name, help string, v func(pipeline.Snapshot) uint64) {
		c.add(namespace, name, help, prometheus.CounterValue, func(s pipeline.Snapshot) float64 { return float64(v(s)) })
	}
	gauge := func(name, help string, v func(pipeline.Snapshot) float64) {
		c.add(namespace, name, help, prometheus.GaugeValue, v)
	}

	counter("files_opened_total", "Input files opened.", func(s pipeline.Snapshot) uint64 { return s.FilesOpened })
	counter("files_skipped_total", "Input files that failed to open.", func(s pipeline.Snapshot) uint64 { return s.FilesSkipped })
	counter("files_closed_total", "Input files closed after their last record retired.", func(s pipeline.Snapshot) uint64 { return s.FilesClosed })
	counter("events_read_total", "Events extracted by the reader.", func(s pipeline.Snapshot) uint64 { return s.Events })
	counter("messages_total", "Diagnostic-only items emitted by the reader.", func(s pipeline.Snapshot) uint64 { return s.Messages })
	counter("reroutes_total", "Events routed away from a full worker queue.", func(s pipeline.Snapshot) uint64 { return s.Reroutes })
	counter("events_processed_total", "Events unpacked by workers.", func(s pipeline.Snapshot) uint64 { return s.Processed })
	counter("events_damaged_total", "Events that failed to unpack.", func(s pipeline.Snapshot) uint64 { return s.Damaged })
	counter("items_retired_total", "Events and messages retired in order.", func(s pipeline.Snapshot) uint64 { return s.Retired })
	counter("flushes_total", "Flush sentinels retired.", func(s pipeline.Snapshot) uint64 { return s.Flushes })
	counter("arena_allocated_bytes_total", "Bytes handed out by stage arenas.", func(s pipeline.Snapshot) uint64 { return s.ArenaAllocated })
	counter("arena_reclaimed_bytes_total", "Arena bytes returned at retirement.", func(s pipeline.Snapshot) uint64 { return s.ArenaReclaimed })
	gauge("arena_outstanding_bytes", "Arena bytes not yet reclaimed.", func(s pipeline.Snapshot) float64 { return float64(s.ArenaOutstanding) })
	gauge("items_in_flight", "Items emitted by the reader and not yet retired.", func(s pipeline.Snapshot) float64 { return float64(s.InFlight()) })
	gauge("elapsed_seconds", "Time since the pipeline started.", func(s pipeline.Snapshot) float64 { return s.Elapsed.Seconds() })
	return c
}

func (c *Collector) add(namespace, name, help string, kind prometheus.ValueType, v func(pipeline.Snapshot) float64) {
	c.metrics = append(c.metrics, metric{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
		kind:  kind,
		value: v,
	})
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s))
	}
}
