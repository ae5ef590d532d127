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
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// VMReader reads the memory of a live process with process_vm_readv(2).
type VMReader struct {
	pid    int
	format Format
}

// NewVMReader creates a reader for the memory of process pid.
func NewVMReader(pid int, format Format) (*VMReader, error) {
	if err := unix.Kill(pid, 0); err != nil && err != unix.EPERM {
		return nil, errors.Wrapf(err, "cannot read memory of process %d", pid)
	}
	return &VMReader{pid: pid, format: format}, nil
}

// Pid returns the process whose memory is read.
func (v *VMReader) Pid() int {
	return v.pid
}

// ReadBytes reads n bytes starting at addr.
func (v *VMReader) ReadBytes(addr uint64, n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(n)
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: n}}

	read, err := unix.ProcessVMReadv(v.pid, local, remote, 0)
	switch {
	case err == unix.EFAULT:
		return nil, readError(addr, n, ErrUnmapped)
	case err != nil:
		return nil, readError(addr, n, os.NewSyscallError("process_vm_readv", err))
	case read != n:
		return nil, readError(addr, n, errors.Errorf("partial read of %d bytes", read))
	}
	return buf, nil
}

// ReadWord reads a machine word at addr.
func (v *VMReader) ReadWord(addr uint64) (uint64, error) {
	return readWord(v, v.format, addr)
}
