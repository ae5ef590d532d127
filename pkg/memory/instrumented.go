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

// InstrumentedReader counts the reads, bytes and failures of another
// Reader into the memory metrics.
type InstrumentedReader struct {
	reader Reader
	format Format
}

// NewInstrumentedReader wraps reader for metrics collection.
func NewInstrumentedReader(reader Reader, format Format) *InstrumentedReader {
	return &InstrumentedReader{reader: reader, format: format}
}

// ReadBytes reads n bytes starting at addr.
func (i *InstrumentedReader) ReadBytes(addr uint64, n int) ([]byte, error) {
	b, err := i.reader.ReadBytes(addr, n)
	if err != nil {
		stats.readError()
		return nil, err
	}
	stats.read(len(b))
	return b, nil
}

// ReadWord reads a machine word at addr.
func (i *InstrumentedReader) ReadWord(addr uint64) (uint64, error) {
	return readWord(i, i.format, addr)
}
