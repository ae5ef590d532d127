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

// CursorState is the state of an Iterator.
type CursorState int

const (
	// NeedsChunk means the next entry is found by descending from the root.
	NeedsChunk CursorState = iota
	// HasChunk means the iterator is positioned in a bottom level node
	// and the next entry may be found by scanning its remaining slots.
	HasChunk
	// Exhausted means there are no more entries, or iteration failed.
	Exhausted
)

func (s CursorState) String() string {
	switch s {
	case NeedsChunk:
		return "needs-chunk"
	case HasChunk:
		return "has-chunk"
	case Exhausted:
		return "exhausted"
	}
	return "invalid"
}

// Iterator yields the entries of a tree in ascending index order.
//
// Iteration proceeds in chunks. A chunk is the rest of a bottom level node,
// found by descending from the root. Entries within a chunk are found by
// scanning the slots of the node read for the chunk. Every chunk starts
// with a new descent from the root. An Iterator must not be shared between
// goroutines.
type Iterator struct {
	trie      *Trie
	state     CursorState
	index     uint64 // index of the current entry
	nextIndex uint64 // first index past the current chunk
	node      *Node  // node of the current chunk, nil for single-entry trees
	offset    int    // slot of the current entry in node
	value     uint64
	err       error
}

// Entry is an index and the value stored there.
type Entry struct {
	Index uint64
	Value uint64
}

// NewIterator returns an iterator positioned before the first entry at or
// after start.
func (t *Trie) NewIterator(start uint64) *Iterator {
	return &Iterator{
		trie:      t,
		nextIndex: start,
	}
}

// Next advances to the next entry. It returns false once there are no more
// entries or iteration failed, in which case Err returns the error.
func (it *Iterator) Next() bool {
	switch it.state {
	case Exhausted:
		return false
	case HasChunk:
		found, err := it.nextSlot()
		if err != nil {
			return it.fail(err)
		}
		if found {
			stats.iteration()
			return true
		}
		it.state = NeedsChunk
	}

	found, err := it.nextChunk()
	if err != nil {
		return it.fail(err)
	}
	if !found {
		it.state = Exhausted
		return false
	}
	it.state = HasChunk
	stats.iteration()
	return true
}

// Index returns the index of the current entry.
func (it *Iterator) Index() uint64 {
	return it.index
}

// Value returns the value of the current entry.
func (it *Iterator) Value() uint64 {
	return it.value
}

// Err returns the error that stopped iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// State returns the state of the iterator.
func (it *Iterator) State() CursorState {
	return it.state
}

func (it *Iterator) fail(err error) bool {
	it.err = err
	it.state = Exhausted
	return false
}

// nextChunk descends from the root to the first occupied slot at or after
// nextIndex, skipping empty subtrees by scanning their siblings.
func (it *Iterator) nextChunk() (bool, error) {
	t := it.trie
	g := t.cfg.Geometry
	index := it.nextIndex

	// nextIndex wrapped around past the largest index
	if index == 0 && it.index != 0 {
		return false, nil
	}

restart:
	switch t.head.Kind {
	case SlotEmpty:
		return false, nil
	case SlotLeaf:
		if index > 0 {
			return false, nil
		}
		it.index, it.nextIndex = 0, 1
		it.node, it.offset = nil, 0
		it.value = t.head.Value()
		return true, nil
	}

	node, err := t.readNode(t.head.Node(), index)
	if err != nil {
		return false, err
	}
	if index > node.MaxIndex(g) {
		return false, nil
	}

	for {
		offset := g.Offset(index, node.Shift)
		child := node.Slots[offset]

		if child.IsEmpty() {
			for offset++; offset < len(node.Slots); offset++ {
				if !node.Slots[offset].IsEmpty() {
					break
				}
			}
			base := index &^ node.MaxIndex(g)
			step := uint64(offset) << node.Shift
			if step>>node.Shift != uint64(offset) || base+step < base || base+step == 0 {
				// past the largest index
				return false, nil
			}
			index = base + step
			if offset == len(node.Slots) {
				goto restart
			}
			child = node.Slots[offset]
		}

		if node.Shift == 0 {
			if child.Kind == SlotInternal {
				return false, corrupt(uint64(node.ID), offset, index,
					"internal entry 0x%x in bottom level node", child.Word)
			}
			it.index = index&^node.MaxIndex(g) | uint64(offset)
			it.nextIndex = (index | node.MaxIndex(g)) + 1
			it.node, it.offset = node, offset
			it.value = child.Value()
			return true, nil
		}

		if child.Kind == SlotLeaf {
			return false, corrupt(uint64(node.ID), offset, index,
				"leaf entry 0x%x in node of shift %d", child.Word, node.Shift)
		}
		if node, err = t.readChild(child.Node(), node.Shift, index); err != nil {
			return false, err
		}
	}
}

// nextSlot scans the rest of the current chunk for an occupied slot.
func (it *Iterator) nextSlot() (bool, error) {
	n := it.node
	if n == nil {
		return false, nil
	}
	for it.offset+1 < len(n.Slots) && it.index+1 != it.nextIndex {
		it.offset++
		it.index++
		slot := n.Slots[it.offset]
		switch slot.Kind {
		case SlotEmpty:
			continue
		case SlotInternal:
			return false, corrupt(uint64(n.ID), it.offset, it.index,
				"internal entry 0x%x in bottom level node", slot.Word)
		}
		it.value = slot.Value()
		return true, nil
	}
	return false, nil
}

// ForEachSlot calls fn for each entry at or after start in ascending index
// order, until fn returns false.
func (t *Trie) ForEachSlot(start uint64, fn func(index, value uint64) bool) error {
	it := t.NewIterator(start)
	for it.Next() {
		if !fn(it.Index(), it.Value()) {
			return nil
		}
	}
	return it.Err()
}

// Collect returns up to max entries at or after start, all of them if max
// is not positive.
func (t *Trie) Collect(start uint64, max int) ([]Entry, error) {
	entries := []Entry{}
	err := t.ForEachSlot(start, func(index, value uint64) bool {
		entries = append(entries, Entry{Index: index, Value: value})
		return max <= 0 || len(entries) < max
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
