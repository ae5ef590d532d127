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

package memory

import (
	"sync"
)

// Fixture is a sparse in-memory address space. Bytes never stored read
// as unmapped. It is safe for concurrent reads once populated.
type Fixture struct {
	sync.RWMutex
	format Format
	bytes  map[uint64]byte
}

// NewFixture creates an empty address space with the given word format.
func NewFixture(format Format) *Fixture {
	return &Fixture{
		format: format,
		bytes:  make(map[uint64]byte),
	}
}

// Format returns the word format of the fixture.
func (f *Fixture) Format() Format {
	return f.format
}

// PutBytes stores data at addr.
func (f *Fixture) PutBytes(addr uint64, data []byte) {
	f.Lock()
	defer f.Unlock()
	for i, b := range data {
		f.bytes[addr+uint64(i)] = b
	}
}

// PutWord stores a machine word at addr.
func (f *Fixture) PutWord(addr uint64, w uint64) {
	f.PutBytes(addr, f.format.Encode(w))
}

// PutWords stores consecutive machine words starting at addr.
func (f *Fixture) PutWords(addr uint64, words ...uint64) {
	size := uint64(f.format.wordSize())
	for i, w := range words {
		f.PutWord(addr+uint64(i)*size, w)
	}
}

// PutUint stores an unsigned integer of size bytes at addr.
func (f *Fixture) PutUint(addr uint64, size int, v uint64) {
	b := make([]byte, 8)
	f.format.ByteOrder.PutUint64(b, v)
	if f.format.ByteOrder.Uint16([]byte{0, 1}) == 1 {
		// big endian, value bytes are at the tail
		b = b[8-size:]
	} else {
		b = b[:size]
	}
	f.PutBytes(addr, b)
}

// Zero maps n zero bytes at addr.
func (f *Fixture) Zero(addr uint64, n int) {
	f.PutBytes(addr, make([]byte, n))
}

// ReadBytes reads n bytes starting at addr.
func (f *Fixture) ReadBytes(addr uint64, n int) ([]byte, error) {
	f.RLock()
	defer f.RUnlock()
	buf := make([]byte, n)
	for i := range buf {
		b, ok := f.bytes[addr+uint64(i)]
		if !ok {
			return nil, readError(addr, n, ErrUnmapped)
		}
		buf[i] = b
	}
	return buf, nil
}

// ReadWord reads a machine word at addr.
func (f *Fixture) ReadWord(addr uint64) (uint64, error) {
	return readWord(f, f.format, addr)
}
