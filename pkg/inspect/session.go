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

package inspect

import (
	"fmt"
	"io"

	logger "github.com/intel/memtrie/pkg/log"
	"github.com/intel/memtrie/pkg/memory"
	"github.com/intel/memtrie/pkg/radixtree"
	"github.com/intel/memtrie/pkg/target"
	"github.com/pkg/errors"
)

var log = logger.NewLogger("inspect")

const (
	// MethodProcMem reads process memory through /proc/PID/mem.
	MethodProcMem = "mem"
	// MethodVMReadv reads process memory with process_vm_readv(2).
	MethodVMReadv = "vm"
)

// Session is the memory and target layout being inspected.
type Session struct {
	name    string
	mem     memory.Reader
	closer  io.Closer
	cache   *memory.CachingReader
	maps    *memory.AddrRanges
	layout  *target.Layout
	layouts *target.LayoutCache
}

// NewSession creates a session with the default target layout and no memory.
func NewSession(layouts *target.LayoutCache) *Session {
	if layouts == nil {
		layouts = target.NewLayoutCache()
	}
	return &Session{
		layout:  target.Preset(target.DefaultPreset),
		layouts: layouts,
	}
}

// AttachPid starts inspecting the memory of process pid. If cachePages is
// positive, reads go through a cache of that many pages.
func (s *Session) AttachPid(pid int, method string, cachePages int) error {
	var (
		r      memory.Reader
		closer io.Closer
	)
	switch method {
	case MethodProcMem, "":
		m, err := memory.OpenProcMem(pid, s.layout.Format())
		if err != nil {
			return err
		}
		r, closer = m, m
	case MethodVMReadv:
		v, err := memory.NewVMReader(pid, s.layout.Format())
		if err != nil {
			return err
		}
		r = v
	default:
		return errors.Errorf("unknown memory access method %q", method)
	}

	maps, err := memory.ProcMaps(pid)
	if err != nil {
		log.Warn("no address ranges for process %d: %v", pid, err)
		maps = nil
	}
	if err := s.use(fmt.Sprintf("pid %d", pid), r, closer, cachePages); err != nil {
		return err
	}
	s.maps = maps
	return nil
}

// OpenSnapshot starts inspecting a memory snapshot taken at base.
func (s *Session) OpenSnapshot(path string, base uint64, cachePages int) error {
	snap, err := memory.OpenSnapshot(path, base, s.layout.Format())
	if err != nil {
		return err
	}
	if err := s.use("snapshot "+path, snap, snap, cachePages); err != nil {
		return err
	}
	s.maps = memory.NewAddrRanges(0, snap.Range())
	return nil
}

// UseReader starts inspecting memory read through r.
func (s *Session) UseReader(name string, r memory.Reader, cachePages int) error {
	if err := s.use(name, r, nil, cachePages); err != nil {
		return err
	}
	s.maps = nil
	return nil
}

func (s *Session) use(name string, r memory.Reader, closer io.Closer, cachePages int) error {
	format := s.layout.Format()
	r = memory.NewInstrumentedReader(r, format)

	var cache *memory.CachingReader
	if cachePages > 0 {
		c, err := memory.NewCachingReader(r, format, cachePages, memory.DefaultCachePageSize)
		if err != nil {
			if closer != nil {
				closer.Close()
			}
			return err
		}
		cache, r = c, c
	}

	s.Close()
	s.name, s.mem, s.closer, s.cache = name, r, closer, cache
	log.Info("inspecting %s", name)
	return nil
}

// Close releases the inspected memory.
func (s *Session) Close() error {
	var err error
	if s.closer != nil {
		err = s.closer.Close()
	}
	s.name, s.mem, s.closer, s.cache, s.maps = "", nil, nil, nil, nil
	return err
}

// Name describes the inspected memory.
func (s *Session) Name() string {
	return s.name
}

// Memory returns the reader of the inspected memory.
func (s *Session) Memory() (memory.Reader, error) {
	if s.mem == nil {
		return nil, errors.New("no memory to inspect, use attach or snapshot first")
	}
	return s.mem, nil
}

// Cache returns the memory cache of the session, if any.
func (s *Session) Cache() *memory.CachingReader {
	return s.cache
}

// Maps returns the known mapped address ranges, if any.
func (s *Session) Maps() *memory.AddrRanges {
	return s.maps
}

// Layout returns the target layout.
func (s *Session) Layout() *target.Layout {
	return s.layout
}

// SetLayout selects the target layout by preset name or file path.
func (s *Session) SetLayout(name string) error {
	l, err := s.layouts.Get(name)
	if err != nil {
		return err
	}
	if s.mem != nil && l.WordSize != s.layout.WordSize {
		log.Warn("word size changed to %d, reattach to read memory accordingly", l.WordSize)
	}
	s.layout = l
	return nil
}

// Trie opens the tree whose root structure is at rootAddr.
func (s *Session) Trie(rootAddr uint64) (*radixtree.Trie, error) {
	if rootAddr == 0 {
		return nil, errors.New("invalid tree root address 0")
	}
	mem, err := s.Memory()
	if err != nil {
		return nil, err
	}
	return radixtree.Open(mem, radixtree.ConfigFor(s.layout), rootAddr)
}

// HeadTrie opens the tree with the given raw head word.
func (s *Session) HeadTrie(head uint64) (*radixtree.Trie, error) {
	mem, err := s.Memory()
	if err != nil {
		return nil, err
	}
	return radixtree.New(mem, radixtree.ConfigFor(s.layout), head), nil
}
