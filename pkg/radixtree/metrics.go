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

package radixtree

import (
	"sync/atomic"

	"github.com/intel/memtrie/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus Metric descriptor indices and descriptor table
const (
	lookupsDesc = iota
	foundDesc
	iterationsDesc
	nodesDesc
	corruptDesc
	numDescriptors
)

var descriptors = [numDescriptors]*prometheus.Desc{
	lookupsDesc: prometheus.NewDesc(
		"radixtree_lookups_total",
		"Number of radix tree lookups",
		nil, nil,
	),
	foundDesc: prometheus.NewDesc(
		"radixtree_lookups_found_total",
		"Number of radix tree lookups that found an entry",
		nil, nil,
	),
	iterationsDesc: prometheus.NewDesc(
		"radixtree_iterated_entries_total",
		"Number of entries yielded by radix tree iterators",
		nil, nil,
	),
	nodesDesc: prometheus.NewDesc(
		"radixtree_nodes_visited_total",
		"Number of radix tree nodes read",
		nil, nil,
	),
	corruptDesc: prometheus.NewDesc(
		"radixtree_corrupt_structures_total",
		"Number of traversals aborted by an inconsistent tree",
		nil, nil,
	),
}

type traversalStats [numDescriptors]uint64

var stats = &traversalStats{}

func (s *traversalStats) add(idx int) {
	atomic.AddUint64(&s[idx], 1)
}

func (s *traversalStats) get(idx int) uint64 {
	return atomic.LoadUint64(&s[idx])
}

func (s *traversalStats) lookup()    { s.add(lookupsDesc) }
func (s *traversalStats) found()     { s.add(foundDesc) }
func (s *traversalStats) iteration() { s.add(iterationsDesc) }
func (s *traversalStats) nodeVisit() { s.add(nodesDesc) }
func (s *traversalStats) corrupt()   { s.add(corruptDesc) }

type collector struct{}

// NewCollector creates a new Prometheus collector for tree traversals.
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
	for idx, d := range descriptors {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(stats.get(idx)))
	}
}

func init() {
	err := metrics.RegisterCollector("radixtree", NewCollector)
	if err != nil {
		log.Error("failed register radixtree collector: %v", err)
	}
}
