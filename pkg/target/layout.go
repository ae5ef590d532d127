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

// Package target describes the memory layout of an introspected system:
// its word format, the geometry and tagging of its radix trees, and the
// offsets of named struct fields. A Layout serves as the type oracle for
// decoding foreign memory.
package target

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	logger "github.com/intel/memtrie/pkg/log"
	"github.com/intel/memtrie/pkg/memory"
)

var log = logger.NewLogger("target")

const (
	// LittleEndian is the ByteOrder of little-endian targets.
	LittleEndian = "little"
	// BigEndian is the ByteOrder of big-endian targets.
	BigEndian = "big"
)

// Layout is the memory layout of a target.
type Layout struct {
	// Name of the layout.
	Name string `json:"name"`
	// Base names a preset the layout was derived from.
	Base string `json:"base,omitempty"`
	// WordSize is the size of pointers and slots in bytes.
	WordSize int `json:"wordSize"`
	// ByteOrder is either little or big.
	ByteOrder string `json:"byteOrder"`
	// MapShift is log2 of the trie fanout.
	MapShift uint `json:"mapShift"`
	// TagMask selects the tag bits of a slot word.
	TagMask uint64 `json:"tagMask"`
	// InternalTag is the tag of references to internal nodes.
	InternalTag uint64 `json:"internalTag"`
	// RootHeadOffset is the offset of the head word in the trie root.
	RootHeadOffset uint64 `json:"rootHeadOffset"`
	// NodeShiftOffset is the offset of the shift in a trie node.
	NodeShiftOffset uint64 `json:"nodeShiftOffset"`
	// NodeShiftSize is the size of the shift field in a trie node.
	NodeShiftSize int `json:"nodeShiftSize"`
	// NodeSlotsOffset is the offset of the slot array in a trie node.
	NodeSlotsOffset uint64 `json:"nodeSlotsOffset"`
	// Structs are the other known struct layouts, by name.
	Structs map[string]Struct `json:"structs,omitempty"`
}

// Struct is the layout of a struct.
type Struct struct {
	// Size of the struct in bytes, 0 if unknown.
	Size uint64 `json:"size,omitempty"`
	// Fields by name. Nested members use dotted names, like ar.start.
	Fields map[string]Field `json:"fields"`
}

// Field is the location of a struct member.
type Field struct {
	Offset uint64 `json:"offset"`
	Size   int    `json:"size"`
}

// Format returns the word format of the target.
func (l *Layout) Format() memory.Format {
	f := memory.Format{WordSize: l.WordSize, ByteOrder: binary.LittleEndian}
	if l.ByteOrder == BigEndian {
		f.ByteOrder = binary.BigEndian
	}
	return f
}

// Fanout returns the number of slots in a trie node.
func (l *Layout) Fanout() int {
	return 1 << l.MapShift
}

// Struct returns the named struct layout.
func (l *Layout) Struct(name string) (*Struct, error) {
	s, ok := l.Structs[name]
	if !ok {
		return nil, targetError("layout %q has no struct %q", l.Name, name)
	}
	return &s, nil
}

// StructNames returns the names of known structs, sorted.
func (l *Layout) StructNames() []string {
	names := make([]string, 0, len(l.Structs))
	for name := range l.Structs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the layout.
func (l *Layout) Clone() *Layout {
	c := *l
	c.Structs = make(map[string]Struct, len(l.Structs))
	for name, s := range l.Structs {
		fields := make(map[string]Field, len(s.Fields))
		for fname, f := range s.Fields {
			fields[fname] = f
		}
		c.Structs[name] = Struct{Size: s.Size, Fields: fields}
	}
	return &c
}

// Validate checks the layout for consistency, reporting all problems.
func (l *Layout) Validate() error {
	var errors *multierror.Error

	if l.WordSize != 4 && l.WordSize != 8 {
		errors = multierror.Append(errors, targetError("invalid word size %d", l.WordSize))
	}
	if l.ByteOrder != LittleEndian && l.ByteOrder != BigEndian {
		errors = multierror.Append(errors, targetError("invalid byte order %q", l.ByteOrder))
	}
	if l.MapShift < 1 || l.MapShift > 8 {
		errors = multierror.Append(errors, targetError("invalid map shift %d", l.MapShift))
	}
	if l.InternalTag == 0 || l.InternalTag&^l.TagMask != 0 {
		errors = multierror.Append(errors,
			targetError("internal tag 0x%x not a non-zero subset of tag mask 0x%x",
				l.InternalTag, l.TagMask))
	}
	if !validSize(l.NodeShiftSize) {
		errors = multierror.Append(errors, targetError("invalid node shift size %d", l.NodeShiftSize))
	}
	if l.WordSize > 0 && l.NodeSlotsOffset%uint64(l.WordSize) != 0 {
		errors = multierror.Append(errors,
			targetError("node slots offset %d not word aligned", l.NodeSlotsOffset))
	}
	slotsEnd := l.NodeSlotsOffset + uint64(l.WordSize)<<l.MapShift
	shiftEnd := l.NodeShiftOffset + uint64(l.NodeShiftSize)
	if l.NodeShiftOffset < slotsEnd && l.NodeSlotsOffset < shiftEnd {
		errors = multierror.Append(errors, targetError("node slots overlap node shift"))
	}

	for _, name := range l.StructNames() {
		s := l.Structs[name]
		for fname, f := range s.Fields {
			if f.Size < 0 {
				errors = multierror.Append(errors,
					targetError("%s.%s: negative size %d", name, fname, f.Size))
			}
			if s.Size > 0 && f.Offset+uint64(f.Size) > s.Size {
				errors = multierror.Append(errors,
					targetError("%s.%s: [%d, %d) outside struct of size %d",
						name, fname, f.Offset, f.Offset+uint64(f.Size), s.Size))
			}
		}
	}

	return errors.ErrorOrNil()
}

// String returns a one-line summary of the layout.
func (l *Layout) String() string {
	return fmt.Sprintf("%s: %d-bit %s-endian, fanout %d, tag 0x%x/0x%x, structs %s",
		l.Name, l.WordSize*8, l.ByteOrder, l.Fanout(), l.InternalTag, l.TagMask,
		strings.Join(l.StructNames(), ","))
}

// Field returns the named field.
func (s *Struct) Field(name string) (Field, error) {
	f, ok := s.Fields[name]
	if !ok {
		return Field{}, targetError("no field %q", name)
	}
	return f, nil
}

// Addr returns the address of the named field in the struct at addr.
func (s *Struct) Addr(addr uint64, field string) (uint64, error) {
	f, err := s.Field(field)
	if err != nil {
		return 0, err
	}
	return addr + f.Offset, nil
}

// Read reads the named field of the struct at addr as an unsigned integer.
func (s *Struct) Read(r memory.Reader, format memory.Format, addr uint64, field string) (uint64, error) {
	f, err := s.Field(field)
	if err != nil {
		return 0, err
	}
	if !validSize(f.Size) {
		return 0, targetError("field %q of size %d is not an integer", field, f.Size)
	}
	return memory.Uint(r, format, addr+f.Offset, f.Size)
}

// ContainerOf returns the address of the struct whose field is at addr.
func (s *Struct) ContainerOf(addr uint64, field string) (uint64, error) {
	f, err := s.Field(field)
	if err != nil {
		return 0, err
	}
	return addr - f.Offset, nil
}

func validSize(size int) bool {
	switch size {
	case 1, 2, 4, 8:
		return true
	}
	return false
}

// targetError returns a package-specific formatted error.
func targetError(format string, args ...interface{}) error {
	return fmt.Errorf("target: "+format, args...)
}
