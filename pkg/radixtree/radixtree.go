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

// Package radixtree implements read-only lookup and ordered iteration over
// radix trees (Linux radix_tree / XArray) that live in foreign memory.
//
// Nodes are never owned by this package. They are identified by their
// address and materialized on demand through a memory.Reader. A tree read
// from a live process may be mutated while it is being traversed, so any
// traversal may observe a torn tree. Such inconsistencies are reported as
// errors wrapping ErrCorruptStructure; nothing is retried internally.
//
// Slot words use the kernel tagging convention: a word whose tag bits
// (TagMask) equal InternalTag refers to an internal node, zero is an empty
// slot and anything else is an opaque leaf value.
package radixtree

import (
	"math"

	logger "github.com/intel/memtrie/pkg/log"
	"github.com/intel/memtrie/pkg/memory"
	"github.com/intel/memtrie/pkg/target"
)

var log = logger.NewLogger("radixtree")

// NodeID is the address of a node in foreign memory.
type NodeID uint64

// Geometry is the shape of a tree, the number of index bits consumed per level.
type Geometry struct {
	MapShift uint
}

// Fanout returns the number of slots per node.
func (g Geometry) Fanout() int {
	return 1 << g.MapShift
}

// MapMask returns the mask for slot offsets.
func (g Geometry) MapMask() uint64 {
	return uint64(g.Fanout() - 1)
}

// MaxIndex returns the largest index relative to its base covered by a node
// with the given shift, saturating at the largest representable index.
func (g Geometry) MaxIndex(shift uint) uint64 {
	if shift+g.MapShift >= 64 {
		return math.MaxUint64
	}
	return uint64(g.Fanout())<<shift - 1
}

// Offset returns the slot offset of index in a node with the given shift.
func (g Geometry) Offset(index uint64, shift uint) int {
	return int((index >> shift) & g.MapMask())
}

// Config describes how trees are laid out in the target memory.
type Config struct {
	Geometry
	// Format of machine words.
	Format memory.Format
	// TagMask selects the tag bits of slot words.
	TagMask uint64
	// InternalTag is the tag of internal node references.
	InternalTag uint64
	// HeadOffset is the offset of the head word in a tree root.
	HeadOffset uint64
	// ShiftOffset and ShiftSize locate the shift in a node.
	ShiftOffset uint64
	ShiftSize   int
	// SlotsOffset is the offset of the slot array in a node.
	SlotsOffset uint64
}

// ConfigFor returns the tree configuration of a target layout.
func ConfigFor(l *target.Layout) Config {
	return Config{
		Geometry:    Geometry{MapShift: l.MapShift},
		Format:      l.Format(),
		TagMask:     l.TagMask,
		InternalTag: l.InternalTag,
		HeadOffset:  l.RootHeadOffset,
		ShiftOffset: l.NodeShiftOffset,
		ShiftSize:   l.NodeShiftSize,
		SlotsOffset: l.NodeSlotsOffset,
	}
}

// SlotKind is the decoded type of a slot.
type SlotKind int

const (
	// SlotEmpty is an unoccupied slot.
	SlotEmpty SlotKind = iota
	// SlotInternal refers to an internal node.
	SlotInternal
	// SlotLeaf holds a value.
	SlotLeaf
)

func (k SlotKind) String() string {
	switch k {
	case SlotEmpty:
		return "empty"
	case SlotInternal:
		return "internal"
	case SlotLeaf:
		return "leaf"
	}
	return "invalid"
}

// SlotRef is a decoded slot or head word.
type SlotRef struct {
	Kind SlotKind
	// Word is the untagged node address of internal slots, and the
	// raw value of leaf slots.
	Word uint64
}

// Decode decodes a raw slot word.
func (c *Config) Decode(w uint64) SlotRef {
	switch {
	case w == 0:
		return SlotRef{Kind: SlotEmpty}
	case w&c.TagMask == c.InternalTag:
		return SlotRef{Kind: SlotInternal, Word: w &^ c.TagMask}
	}
	return SlotRef{Kind: SlotLeaf, Word: w}
}

// Encode returns the raw word of a slot.
func (c *Config) Encode(s SlotRef) uint64 {
	switch s.Kind {
	case SlotInternal:
		return s.Word | c.InternalTag
	case SlotLeaf:
		return s.Word
	}
	return 0
}

// IsEmpty checks if the slot is empty.
func (s SlotRef) IsEmpty() bool {
	return s.Kind == SlotEmpty
}

// Node returns the node an internal slot refers to.
func (s SlotRef) Node() NodeID {
	return NodeID(s.Word)
}

// Value returns the value of a leaf slot.
func (s SlotRef) Value() uint64 {
	return s.Word
}
