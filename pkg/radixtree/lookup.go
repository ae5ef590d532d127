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

// Lookup returns the value stored at index. A missing entry is reported
// with found false and a nil error.
func (t *Trie) Lookup(index uint64) (value uint64, found bool, err error) {
	stats.lookup()

	switch t.head.Kind {
	case SlotEmpty:
		return 0, false, nil
	case SlotLeaf:
		if index != 0 {
			return 0, false, nil
		}
		stats.found()
		return t.head.Value(), true, nil
	}

	id := t.head.Node()
	shift, err := t.readShift(id, index)
	if err != nil {
		return 0, false, err
	}
	if index > t.cfg.MaxIndex(shift) {
		return 0, false, nil
	}

	for {
		offset := t.cfg.Offset(index, shift)
		slot, err := t.readSlot(id, offset, index)
		if err != nil {
			return 0, false, err
		}

		switch slot.Kind {
		case SlotEmpty:
			return 0, false, nil
		case SlotLeaf:
			if shift != 0 {
				return 0, false, corrupt(uint64(id), offset, index,
					"leaf entry 0x%x in node of shift %d", slot.Word, shift)
			}
			stats.found()
			return slot.Value(), true, nil
		}

		if shift == 0 {
			return 0, false, corrupt(uint64(id), offset, index,
				"internal entry 0x%x in bottom level node", slot.Word)
		}
		child := slot.Node()
		if shift, err = t.readChildShift(child, shift, index); err != nil {
			return 0, false, err
		}
		id = child
	}
}
