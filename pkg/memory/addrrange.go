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
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AddrRange is a range of addresses, [addr, addr+length).
type AddrRange struct {
	addr   uint64
	length uint64
}

// AddrRanges is a set of address ranges of a process.
type AddrRanges struct {
	pid   int
	addrs []AddrRange
}

// defaultRangeLength is the length of a range given only its start.
const defaultRangeLength = 4096

// NewAddrRange creates a range from two addresses in either order.
func NewAddrRange(startAddr, stopAddr uint64) *AddrRange {
	if stopAddr < startAddr {
		startAddr, stopAddr = stopAddr, startAddr
	}
	return &AddrRange{addr: startAddr, length: stopAddr - startAddr}
}

// NewAddrRangeFromString parses a range given as hexadecimal START,
// START-END or START+SIZE where SIZE accepts ParseBytes units.
func NewAddrRangeFromString(s string) (*AddrRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("invalid address range: empty string")
	}
	if dash := strings.Index(s, "-"); dash >= 0 {
		start, err := parseAddr(s[:dash])
		if err != nil {
			return nil, fmt.Errorf("invalid address range %q: bad start: %w", s, err)
		}
		stop, err := parseAddr(s[dash+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid address range %q: bad end: %w", s, err)
		}
		return NewAddrRange(start, stop), nil
	}
	if plus := strings.Index(s, "+"); plus >= 0 {
		start, err := parseAddr(s[:plus])
		if err != nil {
			return nil, fmt.Errorf("invalid address range %q: bad start: %w", s, err)
		}
		size, err := ParseBytes(s[plus+1:])
		if err != nil || size < 0 {
			return nil, fmt.Errorf("invalid address range %q: bad size: %v", s, err)
		}
		return &AddrRange{addr: start, length: uint64(size)}, nil
	}
	start, err := parseAddr(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address range %q: %w", s, err)
	}
	return &AddrRange{addr: start, length: defaultRangeLength}, nil
}

// ParseAddr parses a hexadecimal address with an optional 0x prefix.
func ParseAddr(s string) (uint64, error) {
	return parseAddr(s)
}

func parseAddr(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return 0, fmt.Errorf("missing address")
	}
	return strconv.ParseUint(s, 16, 64)
}

// Addr returns the first address of the range.
func (r AddrRange) Addr() uint64 {
	return r.addr
}

// Length returns the length of the range in bytes.
func (r AddrRange) Length() uint64 {
	return r.length
}

// EndAddr returns the first address after the range.
func (r AddrRange) EndAddr() uint64 {
	return r.addr + r.length
}

// Contains checks if addr is in the range.
func (r AddrRange) Contains(addr uint64) bool {
	return addr >= r.addr && addr-r.addr < r.length
}

// Equals checks if two ranges are the same.
func (r *AddrRange) Equals(o *AddrRange) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.addr == o.addr && r.length == o.length
}

func (r AddrRange) String() string {
	return fmt.Sprintf("%x-%x", r.addr, r.EndAddr())
}

// NewAddrRanges creates a sorted set of ranges of process pid.
func NewAddrRanges(pid int, ranges ...AddrRange) *AddrRanges {
	ar := &AddrRanges{pid: pid, addrs: append([]AddrRange{}, ranges...)}
	sort.Slice(ar.addrs, func(i, j int) bool { return ar.addrs[i].addr < ar.addrs[j].addr })
	return ar
}

// Pid returns the process of the ranges.
func (ar *AddrRanges) Pid() int {
	return ar.pid
}

// Ranges returns the address ranges.
func (ar *AddrRanges) Ranges() []AddrRange {
	return ar.addrs
}

// Contains checks if any of the ranges contains addr.
func (ar *AddrRanges) Contains(addr uint64) bool {
	idx := sort.Search(len(ar.addrs), func(i int) bool { return ar.addrs[i].EndAddr() > addr })
	return idx < len(ar.addrs) && ar.addrs[idx].Contains(addr)
}

// Intersection cuts the ranges to those parts that overlap intRanges.
func (ar *AddrRanges) Intersection(intRanges []AddrRange) {
	newAddrs := []AddrRange{}
	for _, oldRange := range ar.addrs {
		for _, cutRange := range intRanges {
			start, stop := oldRange.addr, oldRange.EndAddr()
			if cutRange.addr > start {
				start = cutRange.addr
			}
			if cutStop := cutRange.EndAddr(); cutStop < stop {
				stop = cutStop
			}
			if start < stop {
				newAddrs = append(newAddrs, *NewAddrRange(start, stop))
			}
		}
	}
	sort.Slice(newAddrs, func(i, j int) bool { return newAddrs[i].addr < newAddrs[j].addr })
	ar.addrs = newAddrs
}

func (ar *AddrRanges) String() string {
	s := make([]string, 0, len(ar.addrs))
	for _, r := range ar.addrs {
		s = append(s, r.String())
	}
	return strings.Join(s, ",")
}
