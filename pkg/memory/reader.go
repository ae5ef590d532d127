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

// Package memory implements read access to the memory of other processes
// and to memory snapshots, for decoding data structures that live there.
package memory

import (
	"encoding/binary"
	"fmt"

	logger "github.com/intel/memtrie/pkg/log"
	"github.com/pkg/errors"
)

var log = logger.NewLogger("memory")

// Reader reads raw memory of a foreign address space.
type Reader interface {
	// ReadBytes reads n bytes starting at addr.
	ReadBytes(addr uint64, n int) ([]byte, error)
	// ReadWord reads a machine word at addr.
	ReadWord(addr uint64) (uint64, error)
}

// Format describes how machine words are encoded in the target memory.
type Format struct {
	// WordSize is the size of a machine word in bytes, 4 or 8.
	WordSize int
	// ByteOrder is the byte order of words.
	ByteOrder binary.ByteOrder
}

// Native is the word format of 64-bit little-endian targets.
var Native = Format{WordSize: 8, ByteOrder: binary.LittleEndian}

// Decode decodes a word from the beginning of b.
func (f Format) Decode(b []byte) uint64 {
	if f.WordSize == 4 {
		return uint64(f.ByteOrder.Uint32(b))
	}
	return f.ByteOrder.Uint64(b)
}

// Encode encodes a word into a new byte slice.
func (f Format) Encode(w uint64) []byte {
	b := make([]byte, f.wordSize())
	if f.WordSize == 4 {
		f.ByteOrder.PutUint32(b, uint32(w))
	} else {
		f.ByteOrder.PutUint64(b, w)
	}
	return b
}

func (f Format) wordSize() int {
	if f.WordSize == 4 {
		return 4
	}
	return 8
}

// Uint reads an unsigned integer of the given size (1, 2, 4 or 8 bytes) at addr.
func Uint(r Reader, f Format, addr uint64, size int) (uint64, error) {
	b, err := r.ReadBytes(addr, size)
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(f.ByteOrder.Uint16(b)), nil
	case 4:
		return uint64(f.ByteOrder.Uint32(b)), nil
	case 8:
		return f.ByteOrder.Uint64(b), nil
	}
	return 0, errors.Errorf("unsupported integer size %d", size)
}

// readWord implements ReadWord on top of ReadBytes.
func readWord(r Reader, f Format, addr uint64) (uint64, error) {
	b, err := r.ReadBytes(addr, f.wordSize())
	if err != nil {
		return 0, err
	}
	return f.Decode(b), nil
}

// ErrUnmapped is the cause of reads from addresses with nothing mapped.
var ErrUnmapped = errors.New("address not mapped")

// ReadError is returned when a range of memory cannot be read.
type ReadError struct {
	Addr uint64
	Len  int
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %d bytes at 0x%x: %v", e.Len, e.Addr, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// Cause returns the underlying error for github.com/pkg/errors.
func (e *ReadError) Cause() error {
	return e.Err
}

func readError(addr uint64, n int, err error) error {
	return &ReadError{Addr: addr, Len: n, Err: err}
}
