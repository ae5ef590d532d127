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
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestFixture(t *testing.T) {
	f := NewFixture(Native)
	f.PutWords(0x1000, 0x1122334455667788, 42)
	f.PutUint(0x2000, 2, 0xbeef)

	w, err := f.ReadWord(0x1000)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1122334455667788), w)

	w, err = f.ReadWord(0x1008)
	require.NoError(t, err)
	require.Equal(t, uint64(42), w)

	v, err := Uint(f, Native, 0x2000, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(0xbeef), v)

	b, err := f.ReadBytes(0x1000, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{0x88}, b)

	_, err = f.ReadWord(0x1004 + 8)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnmapped))

	var rerr *ReadError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, uint64(0x100c), rerr.Addr)
	require.Equal(t, 8, rerr.Len)
}

func TestFixtureBigEndian32(t *testing.T) {
	format := Format{WordSize: 4, ByteOrder: binary.BigEndian}
	f := NewFixture(format)
	f.PutWord(0x10, 0xcafe0002)
	f.PutUint(0x20, 1, 7)

	b, err := f.ReadBytes(0x10, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0xca, 0xfe, 0x00, 0x02}, b)

	w, err := f.ReadWord(0x10)
	require.NoError(t, err)
	require.Equal(t, uint64(0xcafe0002), w)

	v, err := Uint(f, format, 0x20, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(7), v)
}

func TestSnapshot(t *testing.T) {
	data := make([]byte, 64)
	binary.LittleEndian.PutUint64(data[8:], 0xfeedface)
	path := filepath.Join(t.TempDir(), "snapshot")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s, err := OpenSnapshot(path, 0xffff888000000000, Native)
	require.NoError(t, err)
	defer s.Close()

	w, err := s.ReadWord(0xffff888000000008)
	require.NoError(t, err)
	require.Equal(t, uint64(0xfeedface), w)

	_, err = s.ReadWord(0xffff888000000000 + 60)
	require.True(t, errors.Is(err, ErrUnmapped))
	_, err = s.ReadWord(0x1000)
	require.True(t, errors.Is(err, ErrUnmapped))

	require.True(t, s.Range().Contains(0xffff88800000003f))
	require.False(t, s.Range().Contains(0xffff888000000040))
}

func TestCachingReader(t *testing.T) {
	f := NewFixture(Native)
	f.Zero(0x1000, 0x2000)
	f.PutWord(0x1ffc, 0x0102030405060708)
	f.PutWord(0x2ff8, 99)
	f.PutWord(0x3000, 7)

	c, err := NewCachingReader(f, Native, 2, 0x1000)
	require.NoError(t, err)

	// read straddling two pages
	w, err := c.ReadWord(0x1ffc)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), w)
	hits, misses := c.Stats()
	require.Equal(t, uint64(0), hits)
	require.Equal(t, uint64(2), misses)
	require.Equal(t, 2, c.Len())

	w, err = c.ReadWord(0x2ff8)
	require.NoError(t, err)
	require.Equal(t, uint64(99), w)
	hits, _ = c.Stats()
	require.Equal(t, uint64(1), hits)

	// page 0x3000 is only partially mapped, falls back to a direct read
	w, err = c.ReadWord(0x3000)
	require.NoError(t, err)
	require.Equal(t, uint64(7), w)

	// cached pages are stale until purged
	f.PutWord(0x2ff8, 100)
	w, err = c.ReadWord(0x2ff8)
	require.NoError(t, err)
	require.Equal(t, uint64(99), w)
	c.Purge()
	require.Equal(t, 0, c.Len())
	w, err = c.ReadWord(0x2ff8)
	require.NoError(t, err)
	require.Equal(t, uint64(100), w)

	_, err = NewCachingReader(f, Native, 2, 1000)
	require.Error(t, err)
}

func TestInstrumentedReader(t *testing.T) {
	f := NewFixture(Native)
	f.PutWord(0x100, 1)
	r := NewInstrumentedReader(f, Native)

	reads, bytes, failures := stats.reads, stats.bytes, stats.errors
	_, err := r.ReadWord(0x100)
	require.NoError(t, err)
	_, err = r.ReadWord(0x200)
	require.Error(t, err)

	require.Equal(t, reads+1, stats.reads)
	require.Equal(t, bytes+8, stats.bytes)
	require.Equal(t, failures+1, stats.errors)
}

func TestProcMemSelf(t *testing.T) {
	value := uint64(0x5a5a5a5a12345678)
	m, err := OpenProcMem(os.Getpid(), Native)
	if err != nil {
		t.Skipf("cannot open own memory: %v", err)
	}
	defer m.Close()

	w, err := m.ReadWord(uint64(uintptrOf(&value)))
	require.NoError(t, err)
	require.Equal(t, value, w)

	_, err = m.ReadWord(1 << 63)
	require.True(t, errors.Is(err, ErrUnmapped))
	runtime.KeepAlive(&value)
}

func uintptrOf(p *uint64) uintptr {
	return uintptr(unsafe.Pointer(p))
}
