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
	"io"
	"os"

	"github.com/pkg/errors"
)

// Snapshot reads memory from a file holding a raw copy of the address
// range [base, base+size).
type Snapshot struct {
	base   uint64
	size   uint64
	format Format
	file   io.ReaderAt
	closer io.Closer
}

// OpenSnapshot opens a raw memory snapshot file that was taken at base.
func OpenSnapshot(path string, base uint64, format Format) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open snapshot")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "failed to stat snapshot")
	}
	log.Debug("opened snapshot %q: %d bytes at 0x%x", path, info.Size(), base)
	return &Snapshot{
		base:   base,
		size:   uint64(info.Size()),
		format: format,
		file:   file,
		closer: file,
	}, nil
}

// NewSnapshot creates a snapshot reader for data taken at base.
func NewSnapshot(data []byte, base uint64, format Format) *Snapshot {
	return &Snapshot{
		base:   base,
		size:   uint64(len(data)),
		format: format,
		file:   bytesReaderAt(data),
	}
}

// Range returns the address range covered by the snapshot.
func (s *Snapshot) Range() AddrRange {
	return AddrRange{addr: s.base, length: s.size}
}

// ReadBytes reads n bytes starting at addr.
func (s *Snapshot) ReadBytes(addr uint64, n int) ([]byte, error) {
	if addr < s.base || addr-s.base > s.size || uint64(n) > s.size-(addr-s.base) {
		return nil, readError(addr, n, ErrUnmapped)
	}
	buf := make([]byte, n)
	if _, err := s.file.ReadAt(buf, int64(addr-s.base)); err != nil {
		return nil, readError(addr, n, err)
	}
	return buf, nil
}

// ReadWord reads a machine word at addr.
func (s *Snapshot) ReadWord(addr uint64) (uint64, error) {
	return readWord(s, s.format, addr)
}

// Close closes the snapshot file.
func (s *Snapshot) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
