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
	"sort"
	"testing"

	"github.com/intel/memtrie/pkg/memory"
	"github.com/stretchr/testify/require"
)

const (
	testHeadOffset  = 8
	testSlotsOffset = 8
	testNodeBase    = 0x100000
	testRootAddr    = 0x1000
)

// builder wires up trees in fixture memory.
type builder struct {
	t    *testing.T
	cfg  Config
	mem  *memory.Fixture
	next uint64
}

func testConfig(mapShift uint, format memory.Format) Config {
	return Config{
		Geometry:    Geometry{MapShift: mapShift},
		Format:      format,
		TagMask:     3,
		InternalTag: 2,
		HeadOffset:  testHeadOffset,
		ShiftOffset: 0,
		ShiftSize:   1,
		SlotsOffset: testSlotsOffset,
	}
}

func newBuilder(t *testing.T, mapShift uint) *builder {
	return newBuilderWithFormat(t, mapShift, memory.Native)
}

func newBuilderWithFormat(t *testing.T, mapShift uint, format memory.Format) *builder {
	return &builder{
		t:    t,
		cfg:  testConfig(mapShift, format),
		mem:  memory.NewFixture(format),
		next: testNodeBase,
	}
}

// node allocates a node with empty slots.
func (b *builder) node(shift uint) NodeID {
	size := testSlotsOffset + uint64(b.cfg.Fanout()*b.cfg.Format.WordSize)
	id := NodeID(b.next)
	b.next += (size + 63) &^ 63
	b.mem.Zero(uint64(id), int(size))
	b.mem.PutUint(uint64(id), 1, uint64(shift))
	return id
}

func (b *builder) slotAddr(n NodeID, offset int) uint64 {
	return uint64(n) + testSlotsOffset + uint64(offset*b.cfg.Format.WordSize)
}

func (b *builder) set(n NodeID, offset int, ref SlotRef) {
	b.mem.PutWord(b.slotAddr(n, offset), b.cfg.Encode(ref))
}

func (b *builder) setRaw(n NodeID, offset int, w uint64) {
	b.mem.PutWord(b.slotAddr(n, offset), w)
}

func (b *builder) get(n NodeID, offset int) SlotRef {
	w, err := b.mem.ReadWord(b.slotAddr(n, offset))
	require.NoError(b.t, err)
	return b.cfg.Decode(w)
}

func internal(n NodeID) SlotRef {
	return SlotRef{Kind: SlotInternal, Word: uint64(n)}
}

func leaf(v uint64) SlotRef {
	return SlotRef{Kind: SlotLeaf, Word: v}
}

// trie returns a tree with the given head, also stored in a root at testRootAddr.
func (b *builder) trie(head SlotRef) *Trie {
	b.mem.Zero(testRootAddr, 16)
	b.mem.PutWord(testRootAddr+testHeadOffset, b.cfg.Encode(head))
	return New(b.mem, b.cfg, b.cfg.Encode(head))
}

// valueOf returns a leaf value for index that never looks like an internal reference.
func valueOf(index uint64) uint64 {
	return index<<2 | 1
}

// build wires up a tree of minimal depth holding valueOf(idx) for each index.
func (b *builder) build(indices ...uint64) *Trie {
	if len(indices) == 0 {
		return b.trie(SlotRef{})
	}
	max := uint64(0)
	for _, idx := range indices {
		if idx > max {
			max = idx
		}
	}
	shift := uint(0)
	for max > b.cfg.MaxIndex(shift) {
		shift += b.cfg.MapShift
	}
	root := b.node(shift)
	for _, idx := range indices {
		n, s := root, shift
		for s > 0 {
			offset := b.cfg.Offset(idx, s)
			child := b.get(n, offset)
			if child.IsEmpty() {
				child = internal(b.node(s - b.cfg.MapShift))
				b.set(n, offset, child)
			}
			n, s = child.Node(), s-b.cfg.MapShift
		}
		b.set(n, b.cfg.Offset(idx, 0), leaf(valueOf(idx)))
	}
	return b.trie(internal(root))
}

// sorted returns the unique indices in ascending order.
func sorted(indices []uint64) []uint64 {
	seen := map[uint64]struct{}{}
	result := []uint64{}
	for _, idx := range indices {
		if _, ok := seen[idx]; !ok {
			seen[idx] = struct{}{}
			result = append(result, idx)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func entriesOf(indices []uint64) []Entry {
	entries := []Entry{}
	for _, idx := range sorted(indices) {
		entries = append(entries, Entry{Index: idx, Value: valueOf(idx)})
	}
	return entries
}
