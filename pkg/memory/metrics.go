// Copyright 2023 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"sync/atomic"

	"github.com/intel/memtrie/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus Metric descriptor indices and descriptor table
const (
	readsDesc = iota
	bytesDesc
	readErrorsDesc
	cacheHitsDesc
	cacheMissesDesc
	numDescriptors
)

var descriptors = [numDescriptors]*prometheus.Desc{
	readsDesc: prometheus.NewDesc(
		"memory_reads_total",
		"Number of successful foreign memory reads",
		nil, nil,
	),
	bytesDesc: prometheus.NewDesc(
		"memory_read_bytes_total",
		"Number of bytes read from foreign memory",
		nil, nil,
	),
	readErrorsDesc: prometheus.NewDesc(
		"memory_read_errors_total",
		"Number of failed foreign memory reads",
		nil, nil,
	),
	cacheHitsDesc: prometheus.NewDesc(
		"memory_cache_hits_total",
		"Number of memory cache page hits",
		nil, nil,
	),
	cacheMissesDesc: prometheus.NewDesc(
		"memory_cache_misses_total",
		"Number of memory cache page misses",
		nil, nil,
	),
}

// readStats holds the counters exported by the collector.
type readStats struct {
	reads       uint64
	bytes       uint64
	errors      uint64
	cacheHits   uint64
	cacheMisses uint64
}

var stats = &readStats{}

func (s *readStats) read(n int) {
	atomic.AddUint64(&s.reads, 1)
	atomic.AddUint64(&s.bytes, uint64(n))
}

func (s *readStats) readError() {
	atomic.AddUint64(&s.errors, 1)
}

func (s *readStats) cacheHit() {
	atomic.AddUint64(&s.cacheHits, 1)
}

func (s *readStats) cacheMiss() {
	atomic.AddUint64(&s.cacheMisses, 1)
}

type collector struct{}

// NewCollector creates a new Prometheus collector for memory reads.
func NewCollector() (prometheus.Collector, error) {
	return &collector{}, nil
}

// Describe implements prometheus.Collector interface
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

// Collect implements prometheus.Collector interface
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	counters := [numDescriptors]uint64{
		readsDesc:       atomic.LoadUint64(&stats.reads),
		bytesDesc:       atomic.LoadUint64(&stats.bytes),
		readErrorsDesc:  atomic.LoadUint64(&stats.errors),
		cacheHitsDesc:   atomic.LoadUint64(&stats.cacheHits),
		cacheMissesDesc: atomic.LoadUint64(&stats.cacheMisses),
	}
	for idx, value := range counters {
		ch <- prometheus.MustNewConstMetric(
			descriptors[idx],
			prometheus.CounterValue,
			float64(value),
		)
	}
}

func init() {
	err := metrics.RegisterCollector("memory", NewCollector)
	if err != nil {
		log.Error("failed register memory collector: %v", err)
	}
}
