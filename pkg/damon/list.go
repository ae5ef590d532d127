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
	"fmt"

	"github.com/intel/memtrie/pkg/memory"
	"github.com/intel/memtrie/pkg/radixtree"
	"github.com/intel/memtrie/pkg/target"
	"github.com/pkg/errors"
)

// DefaultMaxEntries is the default bound on the length of walked lists.
const DefaultMaxEntries = 1 << 20

// ListWalker walks circular doubly linked lists (struct list_head).
type ListWalker struct {
	// Reader reads the memory the list lives in.
	Reader memory.Reader
	// NextOffset is the offset of the next pointer in a list_head.
	NextOffset uint64
	// MaxEntries bounds the number of entries walked.
	MaxEntries int
}

// ListError is an inconsistent list. It matches radixtree.ErrCorruptStructure
// and wraps the failed read, if any.
type ListError struct {
	// Head is the address of the list head.
	Head uint64
	// Reason describes the inconsistency.
	Reason string
	// Err is the underlying read error, if any.
	Err error
}

func (e *ListError) Error() string {
	msg := fmt.Sprintf("list 0x%x: %s", e.Head, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, radixtree.ErrCorruptStructure) hold for list errors.
func (e *ListError) Is(target error) bool {
	return target == radixtree.ErrCorruptStructure
}

// Unwrap returns the underlying read error.
func (e *ListError) Unwrap() error {
	return e.Err
}

func listError(head uint64, err error, format string, args ...interface{}) error {
	return &ListError{Head: head, Reason: fmt.Sprintf(format, args...), Err: err}
}

// Walk calls fn with the address of each container struct linked into the
// list headed at head through its list_head field member. Walking stops at
// the first error returned by fn.
func (w *ListWalker) Walk(head uint64, container *target.Struct, member string, fn func(entry uint64) error) error {
	if _, err := container.Field(member); err != nil {
		return err
	}
	return w.walk(head, func(node uint64) (uint64, error) {
		return container.ContainerOf(node, member)
	}, fn)
}

// Len returns the number of entries in the list headed at head.
func (w *ListWalker) Len(head uint64) (int, error) {
	n := 0
	err := w.walk(head, func(node uint64) (uint64, error) {
		return node, nil
	}, func(uint64) error {
		n++
		return nil
	})
	return n, err
}

func (w *ListWalker) walk(head uint64, entryOf func(uint64) (uint64, error), fn func(uint64) error) error {
	max := w.MaxEntries
	if max <= 0 {
		max = DefaultMaxEntries
	}

	visited := map[uint64]struct{}{}
	cur, err := w.next(head, head)
	if err != nil {
		return err
	}
	for cur != head {
		switch {
		case cur == 0:
			return listError(head, nil, "NULL next pointer after %d entries", len(visited))
		case len(visited) >= max:
			return listError(head, nil, "more than %d entries", max)
		}
		if _, ok := visited[cur]; ok {
			return listError(head, nil, "cycle at 0x%x not through head", cur)
		}
		visited[cur] = struct{}{}

		entry, err := entryOf(cur)
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
		if cur, err = w.next(head, cur); err != nil {
			return err
		}
	}
	return nil
}

func (w *ListWalker) next(head, node uint64) (uint64, error) {
	next, err := w.Reader.ReadWord(node + w.NextOffset)
	if err != nil {
		return 0, listError(head, err, "failed to read list entry 0x%x", node)
	}
	return next, nil
}

// corrupt returns an inconsistency error matching radixtree.ErrCorruptStructure.
func corrupt(format string, args ...interface{}) error {
	return errors.Wrapf(radixtree.ErrCorruptStructure, format, args...)
}
