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

package damon

import (
	"testing"

	"github.com/intel/memtrie/pkg/memory"
	"github.com/intel/memtrie/pkg/radixtree"
	"github.com/intel/memtrie/pkg/target"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// link makes a circular list of the list_heads at head and members.
func link(f *memory.Fixture, head uint64, members ...uint64) {
	nodes := append([]uint64{head}, members...)
	for i, node := range nodes {
		next := nodes[(i+1)%len(nodes)]
		prev := nodes[(i+len(nodes)-1)%len(nodes)]
		f.PutWords(node, next, prev)
	}
}

// entryStruct embeds its list_head at offset 8.
var entryStruct = &target.Struct{
	Size: 24,
	Fields: map[string]target.Field{
		"id":   {Offset: 0, Size: 8},
		"list": {Offset: 8, Size: 16},
	},
}

func TestListWalker(t *testing.T) {
	f := memory.NewFixture(memory.Native)
	w := &ListWalker{Reader: f}

	link(f, 0x1000)
	n, err := w.Len(0x1000)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	link(f, 0x2000, 0x2108, 0x2208, 0x2308)
	entries := []uint64{}
	err = w.Walk(0x2000, entryStruct, "list", func(entry uint64) error {
		entries = append(entries, entry)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{0x2100, 0x2200, 0x2300}, entries)

	stop := errors.New("stop")
	calls := 0
	err = w.Walk(0x2000, entryStruct, "list", func(uint64) error {
		calls++
		return stop
	})
	require.Equal(t, stop, err)
	require.Equal(t, 1, calls)

	w.MaxEntries = 2
	_, err = w.Len(0x2000)
	require.True(t, errors.Is(err, radixtree.ErrCorruptStructure))
	require.Contains(t, err.Error(), "more than 2 entries")
	w.MaxEntries = 0

	err = w.Walk(0x2000, entryStruct, "no_such_member", func(uint64) error {
		t.Fatalf("walked a list through a missing member")
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no_such_member")
}

func TestListWalkerReadError(t *testing.T) {
	f := memory.NewFixture(memory.Native)
	link(f, 0x4000, 0x4108)
	f.PutWord(0x4108, 0x9008)
	w := &ListWalker{Reader: f}

	err := w.Walk(0x4000, entryStruct, "list", func(uint64) error { return nil })
	require.Error(t, err)
	require.True(t, errors.Is(err, radixtree.ErrCorruptStructure))
	require.True(t, errors.Is(err, memory.ErrUnmapped))

	var lerr *ListError
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, uint64(0x4000), lerr.Head)
	require.Contains(t, err.Error(), "failed to read list entry 0x9008")
}

func TestListWalkerCorrupt(t *testing.T) {
	tcases := []struct {
		name     string
		setup    func(f *memory.Fixture)
		expected string
	}{
		{
			name: "cycle not through head",
			setup: func(f *memory.Fixture) {
				link(f, 0x3000, 0x3100, 0x3200)
				f.PutWord(0x3200, 0x3100)
			},
			expected: "cycle at 0x3100",
		},
		{
			name: "NULL next",
			setup: func(f *memory.Fixture) {
				link(f, 0x3000, 0x3100)
				f.PutWord(0x3100, 0)
			},
			expected: "NULL next pointer after 1 entries",
		},
		{
			name: "unmapped entry",
			setup: func(f *memory.Fixture) {
				f.PutWords(0x3000, 0x9000, 0x9000)
			},
			expected: "list entry 0x9000",
		},
		{
			name:     "unmapped head",
			setup:    func(f *memory.Fixture) {},
			expected: "list entry 0x3000",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			f := memory.NewFixture(memory.Native)
			tc.setup(f)
			_, err := (&ListWalker{Reader: f}).Len(0x3000)
			require.Error(t, err)
			require.True(t, errors.Is(err, radixtree.ErrCorruptStructure))
			require.Contains(t, err.Error(), tc.expected)
		})
	}
}
