// Copyright 2021 Intel Corporation. All Rights Reserved.
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
	"strconv"

	"github.com/pkg/errors"
)

// ProcMem reads the memory of a live process through /proc/PID/mem.
// Only addresses below 1<<63 can be read this way.
type ProcMem struct {
	pid    int
	format Format
	file   *os.File
}

// procMemOpen opens /proc/PID/mem of a process for reading.
func procMemOpen(pid int) (*os.File, error) {
	path := "/proc/" + strconv.Itoa(pid) + "/mem"
	memFile, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return memFile, nil
}

// OpenProcMem opens the memory of process pid for reading.
func OpenProcMem(pid int, format Format) (*ProcMem, error) {
	file, err := procMemOpen(pid)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open memory of process %d", pid)
	}
	log.Debug("opened memory of process %d", pid)
	return &ProcMem{pid: pid, format: format, file: file}, nil
}

// Pid returns the process whose memory is read.
func (m *ProcMem) Pid() int {
	return m.pid
}

// ReadBytes reads n bytes starting at addr.
func (m *ProcMem) ReadBytes(addr uint64, n int) ([]byte, error) {
	if addr > uint64(1<<63-1)-uint64(n) {
		return nil, readError(addr, n, ErrUnmapped)
	}
	buf := make([]byte, n)
	read, err := m.file.ReadAt(buf, int64(addr))
	if err != nil {
		if err == io.EOF && read < n {
			err = io.ErrUnexpectedEOF
		}
		return nil, readError(addr, n, err)
	}
	return buf, nil
}

// ReadWord reads a machine word at addr.
func (m *ProcMem) ReadWord(addr uint64) (uint64, error) {
	return readWord(m, m.format, addr)
}

// Close closes /proc/PID/mem.
func (m *ProcMem) Close() error {
	return m.file.Close()
}
