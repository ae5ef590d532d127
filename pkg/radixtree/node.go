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
	"github.com/intel/memtrie/pkg/memory"
)

// Node is an internal node materialized from foreign memory.
type Node struct {
	ID    NodeID
	Shift uint
	Slots []SlotRef
}

// MaxIndex returns the largest index relative to its base covered by the node.
func (n *Node) MaxIndex(g Geometry) uint64 {
	return g.MaxIndex(n.Shift)
}

// Trie is a handle to a tree in foreign memory.
type Trie struct {
	cfg    Config
	reader memory.Reader
	root   uint64
	head   SlotRef
}

// New returns a handle to the tree with the given raw head word.
func New(r memory.Reader, cfg Config, head uint64) *Trie {
	return &Trie{
		cfg:    cfg,
		reader: r,
		head:   cfg.Decode(head),
	}
}

// Open returns a handle to the tree whose root (a radix_tree_root or an
// xarray) is at addr. The head word is read once, the handle does not
// follow later changes of the root.
func Open(r memory.Reader, cfg Config, addr uint64) (*Trie, error) {
	head, err := r.ReadWord(addr + cfg.HeadOffset)
	if err != nil {
		return nil, readFailure(addr, NoSlot, 0, err)
	}
	t := New(r, cfg, head)
	t.root = addr
	log.Debug("opened tree at 0x%x, head 0x%x (%s)", addr, head, t.head.Kind)
	return t, nil
}

// Config returns the configuration of the tree.
func (t *Trie) Config() Config {
	return t.cfg
}

// Head returns the decoded head of the tree.
func (t *Trie) Head() SlotRef {
	return t.head
}

// Root returns the address of the tree root, or 0 for trees created from a head word.
func (t *Trie) Root() uint64 {
	return t.root
}

// MaxIndex returns the largest index representable at the current depth of
// the tree. It is 0 for empty and single-entry trees.
func (t *Trie) MaxIndex() (uint64, error) {
	if t.head.Kind != SlotInternal {
		return 0, nil
	}
	shift, err := t.readShift(t.head.Node(), 0)
	if err != nil {
		return 0, err
	}
	return t.cfg.MaxIndex(shift), nil
}

// readShift reads and checks the shift of the node at id.
func (t *Trie) readShift(id NodeID, index uint64) (uint, error) {
	addr := uint64(id)
	stats.nodeVisit()
	shift, err := memory.Uint(t.reader, t.cfg.Format, addr+t.cfg.ShiftOffset, t.cfg.ShiftSize)
	if err != nil {
		return 0, readFailure(addr, NoSlot, index, err)
	}
	if shift > 63 || t.cfg.MapShift == 0 || shift%uint64(t.cfg.MapShift) != 0 {
		return 0, corrupt(addr, NoSlot, index, "invalid node shift %d", shift)
	}
	return uint(shift), nil
}

// readChildShift reads the shift of a child node and checks it against its parent.
func (t *Trie) readChildShift(id NodeID, parentShift uint, index uint64) (uint, error) {
	shift, err := t.readShift(id, index)
	if err != nil {
		return 0, err
	}
	if shift+t.cfg.MapShift != parentShift {
		return 0, corrupt(uint64(id), NoSlot, index,
			"node shift %d below parent shift %d", shift, parentShift)
	}
	return shift, nil
}

// readSlot reads and decodes a single slot of the node at id.
func (t *Trie) readSlot(id NodeID, offset int, index uint64) (SlotRef, error) {
	addr := uint64(id) + t.cfg.SlotsOffset + uint64(offset*t.cfg.Format.WordSize)
	w, err := t.reader.ReadWord(addr)
	if err != nil {
		return SlotRef{}, readFailure(uint64(id), offset, index, err)
	}
	return t.cfg.Decode(w), nil
}

// ReadNode materializes the node at id with all of its slots.
func (t *Trie) ReadNode(id NodeID) (*Node, error) {
	return t.readNode(id, 0)
}

func (t *Trie) readNode(id NodeID, index uint64) (*Node, error) {
	shift, err := t.readShift(id, index)
	if err != nil {
		return nil, err
	}
	return t.readSlots(id, shift, index)
}

func (t *Trie) readChild(id NodeID, parentShift uint, index uint64) (*Node, error) {
	shift, err := t.readChildShift(id, parentShift, index)
	if err != nil {
		return nil, err
	}
	return t.readSlots(id, shift, index)
}

func (t *Trie) readSlots(id NodeID, shift uint, index uint64) (*Node, error) {
	fanout, size := t.cfg.Fanout(), t.cfg.Format.WordSize
	addr := uint64(id) + t.cfg.SlotsOffset
	raw, err := t.reader.ReadBytes(addr, fanout*size)
	if err != nil {
		return nil, readFailure(uint64(id), NoSlot, index, err)
	}
	n := &Node{
		ID:    id,
		Shift: shift,
		Slots: make([]SlotRef, fanout),
	}
	for i := range n.Slots {
		n.Slots[i] = t.cfg.Decode(t.cfg.Format.Decode(raw[i*size:]))
	}
	return n, nil
}
