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

// Package damon reads the state of DAMON (Data Access MONitor) contexts
// from kernel memory: monitoring attributes, targets and their regions.
package damon

import (
	"encoding/json"

	"github.com/hashicorp/go-multierror"
	logger "github.com/intel/memtrie/pkg/log"
	"github.com/intel/memtrie/pkg/memory"
	"github.com/intel/memtrie/pkg/target"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

var log = logger.NewLogger("damon")

// Context is a snapshot of a struct damon_ctx.
type Context struct {
	Addr    uint64   `json:"addr"`
	Attrs   Attrs    `json:"attrs"`
	Targets []Target `json:"targets"`
}

// Attrs are the monitoring attributes of a context.
type Attrs struct {
	SampleInterval    uint64 `json:"sample_interval_us"`
	AggrInterval      uint64 `json:"aggr_interval_us"`
	OpsUpdateInterval uint64 `json:"ops_update_interval_us"`
	MinNrRegions      uint64 `json:"min_nr_regions"`
	MaxNrRegions      uint64 `json:"max_nr_regions"`
}

// Target is a snapshot of a struct damon_target.
type Target struct {
	Addr      uint64   `json:"addr"`
	PidAddr   uint64   `json:"pid_addr,omitempty"`
	Pid       uint64   `json:"pid,omitempty"`
	NrRegions uint64   `json:"nr_regions"`
	Regions   []Region `json:"regions"`
}

// Region is a snapshot of a struct damon_region.
type Region struct {
	Start      uint64 `json:"start"`
	End        uint64 `json:"end"`
	NrAccesses uint64 `json:"nr_accesses"`
	Age        uint64 `json:"age"`
}

// Size returns the size of the region in bytes.
func (r Region) Size() uint64 {
	return r.End - r.Start
}

// Reader reads DAMON contexts through a target layout.
type Reader struct {
	mem    memory.Reader
	layout *target.Layout
	format memory.Format
	// MaxEntries bounds the length of walked lists.
	MaxEntries int
	// SkipValidation returns contexts even if they are inconsistent.
	SkipValidation bool
}

// NewReader creates a DAMON reader for memory laid out as described by layout.
func NewReader(mem memory.Reader, layout *target.Layout) *Reader {
	return &Reader{
		mem:        mem,
		layout:     layout,
		format:     layout.Format(),
		MaxEntries: DefaultMaxEntries,
	}
}

// ReadContext reads and validates the struct damon_ctx at addr.
func ReadContext(mem memory.Reader, layout *target.Layout, addr uint64) (*Context, error) {
	return NewReader(mem, layout).ReadContext(addr)
}

// ReadContext reads the struct damon_ctx at addr.
func (r *Reader) ReadContext(addr uint64) (*Context, error) {
	ctxStruct, err := r.layout.Struct("damon_ctx")
	if err != nil {
		return nil, err
	}

	ctx := &Context{Addr: addr, Targets: []Target{}}
	for field, ptr := range map[string]*uint64{
		"attrs.sample_interval":     &ctx.Attrs.SampleInterval,
		"attrs.aggr_interval":       &ctx.Attrs.AggrInterval,
		"attrs.ops_update_interval": &ctx.Attrs.OpsUpdateInterval,
		"attrs.min_nr_regions":      &ctx.Attrs.MinNrRegions,
		"attrs.max_nr_regions":      &ctx.Attrs.MaxNrRegions,
	} {
		if *ptr, err = ctxStruct.Read(r.mem, r.format, addr, field); err != nil {
			return nil, errors.Wrapf(err, "damon_ctx 0x%x: failed to read %s", addr, field)
		}
	}

	targetStruct, err := r.layout.Struct("damon_target")
	if err != nil {
		return nil, err
	}
	head, err := ctxStruct.Addr(addr, "adaptive_targets")
	if err != nil {
		return nil, err
	}
	err = r.walker().Walk(head, targetStruct, "list", func(entry uint64) error {
		t, err := r.readTarget(targetStruct, entry)
		if err != nil {
			return err
		}
		ctx.Targets = append(ctx.Targets, *t)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "damon_ctx 0x%x", addr)
	}

	log.Debug("read damon_ctx 0x%x with %d targets", addr, len(ctx.Targets))

	if !r.SkipValidation {
		if err := ctx.Validate(); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

func (r *Reader) walker() *ListWalker {
	next := uint64(0)
	if lh, err := r.layout.Struct("list_head"); err == nil {
		if f, err := lh.Field("next"); err == nil {
			next = f.Offset
		}
	}
	return &ListWalker{Reader: r.mem, NextOffset: next, MaxEntries: r.MaxEntries}
}

func (r *Reader) readTarget(s *target.Struct, addr uint64) (*Target, error) {
	var err error
	t := &Target{Addr: addr}

	if t.PidAddr, err = s.Read(r.mem, r.format, addr, "pid"); err != nil {
		return nil, errors.Wrapf(err, "damon_target 0x%x", addr)
	}
	if t.NrRegions, err = s.Read(r.mem, r.format, addr, "nr_regions"); err != nil {
		return nil, errors.Wrapf(err, "damon_target 0x%x", addr)
	}
	if t.PidAddr != 0 {
		if pid, err := r.layout.Struct("pid"); err == nil {
			if t.Pid, err = pid.Read(r.mem, r.format, t.PidAddr, "nr"); err != nil {
				return nil, errors.Wrapf(err, "damon_target 0x%x: struct pid 0x%x", addr, t.PidAddr)
			}
		}
	}

	regionStruct, err := r.layout.Struct("damon_region")
	if err != nil {
		return nil, err
	}
	head, err := s.Addr(addr, "regions_list")
	if err != nil {
		return nil, err
	}
	t.Regions = []Region{}
	err = r.walker().Walk(head, regionStruct, "list", func(entry uint64) error {
		region, err := r.readRegion(regionStruct, entry)
		if err != nil {
			return err
		}
		t.Regions = append(t.Regions, *region)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "damon_target 0x%x", addr)
	}
	return t, nil
}

func (r *Reader) readRegion(s *target.Struct, addr uint64) (*Region, error) {
	region := &Region{}
	for field, ptr := range map[string]*uint64{
		"ar.start":    &region.Start,
		"ar.end":      &region.End,
		"nr_accesses": &region.NrAccesses,
		"age":         &region.Age,
	} {
		v, err := s.Read(r.mem, r.format, addr, field)
		if err != nil {
			return nil, errors.Wrapf(err, "damon_region 0x%x: failed to read %s", addr, field)
		}
		*ptr = v
	}
	return region, nil
}

// Validate checks the context for inconsistencies, reporting all of them.
func (c *Context) Validate() error {
	var errs *multierror.Error

	if c.Attrs.MinNrRegions > c.Attrs.MaxNrRegions {
		errs = multierror.Append(errs, corrupt("damon_ctx 0x%x: min_nr_regions %d > max_nr_regions %d",
			c.Addr, c.Attrs.MinNrRegions, c.Attrs.MaxNrRegions))
	}
	for _, t := range c.Targets {
		if t.NrRegions != uint64(len(t.Regions)) {
			errs = multierror.Append(errs, corrupt("damon_target 0x%x: nr_regions %d, found %d regions",
				t.Addr, t.NrRegions, len(t.Regions)))
		}
		for i, r := range t.Regions {
			if r.Start >= r.End {
				errs = multierror.Append(errs, corrupt("damon_target 0x%x: region %d [0x%x, 0x%x) is empty",
					t.Addr, i, r.Start, r.End))
			}
			if i > 0 && t.Regions[i-1].End > r.Start {
				errs = multierror.Append(errs, corrupt("damon_target 0x%x: region %d at 0x%x overlaps previous ending at 0x%x",
					t.Addr, i, r.Start, t.Regions[i-1].End))
			}
		}
	}

	return errs.ErrorOrNil()
}

const (
	// FormatJSON dumps contexts as JSON.
	FormatJSON = "json"
	// FormatYAML dumps contexts as YAML.
	FormatYAML = "yaml"
)

// Dump serializes the context in the given format.
func (c *Context) Dump(format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(c, "", "  ")
	case FormatYAML:
		return yaml.Marshal(c)
	}
	return nil, errors.Errorf("unknown dump format %q", format)
}
