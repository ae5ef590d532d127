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

package target

import (
	"sort"
)

const (
	// PresetLinuxX86_64 is the layout of 64-bit x86 Linux kernels.
	PresetLinuxX86_64 = "linux-x86_64"
	// PresetLinuxSmall is linux-x86_64 built with CONFIG_BASE_SMALL.
	PresetLinuxSmall = "linux-small"
	// PresetLinuxI386 is the layout of 32-bit x86 Linux kernels.
	PresetLinuxI386 = "linux-i386"
	// DefaultPreset is the preset used when no layout is given.
	DefaultPreset = PresetLinuxX86_64
)

// Struct offsets follow a typical distribution kernel configuration.
// Kernels built differently need a layout file, for instance generated
// from pahole output.
var presets = map[string]func() *Layout{
	PresetLinuxX86_64: linuxX86_64,
	PresetLinuxSmall:  linuxSmall,
	PresetLinuxI386:   linuxI386,
}

func linuxX86_64() *Layout {
	return &Layout{
		Name:            PresetLinuxX86_64,
		WordSize:        8,
		ByteOrder:       LittleEndian,
		MapShift:        6,
		TagMask:         3,
		InternalTag:     2,
		RootHeadOffset:  8,
		NodeShiftOffset: 0,
		NodeShiftSize:   1,
		NodeSlotsOffset: 40,
		Structs: map[string]Struct{
			"xarray": {Size: 16, Fields: map[string]Field{
				"xa_flags": {Offset: 4, Size: 4},
				"xa_head":  {Offset: 8, Size: 8},
			}},
			"xa_node": {Size: 576, Fields: map[string]Field{
				"shift":     {Offset: 0, Size: 1},
				"offset":    {Offset: 1, Size: 1},
				"count":     {Offset: 2, Size: 1},
				"nr_values": {Offset: 3, Size: 1},
				"parent":    {Offset: 8, Size: 8},
				"array":     {Offset: 16, Size: 8},
				"slots":     {Offset: 40, Size: 0},
			}},
			"list_head": {Size: 16, Fields: map[string]Field{
				"next": {Offset: 0, Size: 8},
				"prev": {Offset: 8, Size: 8},
			}},
			"pid": {Fields: map[string]Field{
				"level": {Offset: 4, Size: 4},
				"nr":    {Offset: 96, Size: 4},
			}},
			"damon_ctx": {Fields: map[string]Field{
				"attrs.sample_interval":     {Offset: 0, Size: 8},
				"attrs.aggr_interval":       {Offset: 8, Size: 8},
				"attrs.ops_update_interval": {Offset: 16, Size: 8},
				"attrs.min_nr_regions":      {Offset: 24, Size: 8},
				"attrs.max_nr_regions":      {Offset: 32, Size: 8},
				"kdamond":                   {Offset: 72, Size: 8},
				"adaptive_targets":          {Offset: 256, Size: 16},
			}},
			"damon_target": {Size: 48, Fields: map[string]Field{
				"pid":          {Offset: 0, Size: 8},
				"nr_regions":   {Offset: 8, Size: 4},
				"regions_list": {Offset: 16, Size: 16},
				"list":         {Offset: 32, Size: 16},
			}},
			"damon_region": {Size: 56, Fields: map[string]Field{
				"ar.start":         {Offset: 0, Size: 8},
				"ar.end":           {Offset: 8, Size: 8},
				"sampling_addr":    {Offset: 16, Size: 8},
				"nr_accesses":      {Offset: 24, Size: 4},
				"list":             {Offset: 32, Size: 16},
				"age":              {Offset: 48, Size: 4},
				"last_nr_accesses": {Offset: 52, Size: 4},
			}},
		},
	}
}

func linuxSmall() *Layout {
	l := linuxX86_64()
	l.Name = PresetLinuxSmall
	l.MapShift = 4
	l.Structs["xa_node"] = Struct{Size: 192, Fields: l.Structs["xa_node"].Fields}
	return l
}

func linuxI386() *Layout {
	return &Layout{
		Name:            PresetLinuxI386,
		WordSize:        4,
		ByteOrder:       LittleEndian,
		MapShift:        6,
		TagMask:         3,
		InternalTag:     2,
		RootHeadOffset:  8,
		NodeShiftOffset: 0,
		NodeShiftSize:   1,
		NodeSlotsOffset: 20,
		Structs: map[string]Struct{
			"xarray": {Size: 12, Fields: map[string]Field{
				"xa_flags": {Offset: 4, Size: 4},
				"xa_head":  {Offset: 8, Size: 4},
			}},
			"xa_node": {Fields: map[string]Field{
				"shift":  {Offset: 0, Size: 1},
				"parent": {Offset: 4, Size: 4},
				"array":  {Offset: 8, Size: 4},
				"slots":  {Offset: 20, Size: 0},
			}},
			"list_head": {Size: 8, Fields: map[string]Field{
				"next": {Offset: 0, Size: 4},
				"prev": {Offset: 4, Size: 4},
			}},
		},
	}
}

// Preset returns a copy of the named built-in layout, or nil if there is none.
func Preset(name string) *Layout {
	fn, ok := presets[name]
	if !ok {
		return nil
	}
	return fn()
}

// Presets returns the names of the built-in layouts.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

