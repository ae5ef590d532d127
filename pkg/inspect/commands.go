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
	"sort"
	"strings"

	"github.com/intel/memtrie/pkg/damon"
	"github.com/intel/memtrie/pkg/memory"
	"github.com/intel/memtrie/pkg/metrics"
	"github.com/intel/memtrie/pkg/radixtree"
	"github.com/intel/memtrie/pkg/target"
	"github.com/pkg/errors"
)

var errMissingTree = errors.New("missing tree, use -root=ADDR or -head=WORD")

// reportError prints err as a diagnostic line.
func (p *Prompt) reportError(err error) CommandStatus {
	if radixtree.IsCorrupt(err) {
		p.output("corrupt: %v\n", err)
	} else {
		p.output("error: %v\n", err)
	}
	return csError
}

func (p *Prompt) cmdAttach(args []string) CommandStatus {
	pid := p.f.Int("pid", 0, "inspect memory of process PID")
	method := p.f.String("method", MethodProcMem, "memory access method: mem (/proc/PID/mem) or vm (process_vm_readv)")
	cache := p.f.Int("cache", memory.DefaultCachePages, "cache PAGES pages of memory, 0 disables caching")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	if *pid <= 0 {
		p.output("missing -pid=PID\n")
		return csError
	}
	if err := p.session.AttachPid(*pid, *method, *cache); err != nil {
		return p.reportError(err)
	}
	p.output("inspecting %s\n", p.session.Name())
	return csOk
}

func (p *Prompt) cmdSnapshot(args []string) CommandStatus {
	file := p.f.String("file", "", "raw memory snapshot FILE")
	base := p.f.String("base", "0", "address ADDR where the snapshot was taken")
	cache := p.f.Int("cache", memory.DefaultCachePages, "cache PAGES pages of memory, 0 disables caching")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	if *file == "" {
		p.output("missing -file=FILE\n")
		return csError
	}
	baseAddr, err := memory.ParseAddr(*base)
	if err != nil {
		p.output("invalid -base %q: %v\n", *base, err)
		return csError
	}
	if err := p.session.OpenSnapshot(*file, baseAddr, *cache); err != nil {
		return p.reportError(err)
	}
	p.output("inspecting %s at %s\n", p.session.Name(), p.session.Maps())
	return csOk
}

func (p *Prompt) cmdTarget(args []string) CommandStatus {
	preset := p.f.String("preset", "", "use built-in layout NAME")
	load := p.f.String("load", "", "load layout from YAML or JSON FILE")
	dump := p.f.Bool("dump", false, "print the layout as YAML")
	ls := p.f.Bool("ls", false, "list built-in layouts")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	if *ls {
		p.output("%s\n", strings.Join(target.Presets(), "\n"))
		return csOk
	}
	for _, name := range []string{*preset, *load} {
		if name == "" {
			continue
		}
		if err := p.session.SetLayout(name); err != nil {
			return p.reportError(err)
		}
	}
	if *dump {
		data, err := p.session.Layout().Marshal()
		if err != nil {
			return p.reportError(err)
		}
		p.output("%s", data)
		return csOk
	}
	p.output("%s\n", p.session.Layout())
	return csOk
}

// treeFlags adds the flags selecting a tree.
func (p *Prompt) treeFlags() (root, head *string) {
	root = p.f.String("root", "", "address ADDR of the tree root (xarray, radix_tree_root)")
	head = p.f.String("head", "", "raw head WORD of the tree, instead of -root")
	return root, head
}

func (p *Prompt) openTree(root, head string) (*radixtree.Trie, error) {
	switch {
	case root != "" && head != "":
		return nil, errors.New("use either -root=ADDR or -head=WORD, not both")
	case root != "":
		rootAddr, err := memory.ParseAddr(root)
		if err != nil {
			return nil, err
		}
		return p.session.Trie(rootAddr)
	case head != "":
		headWord, err := memory.ParseAddr(head)
		if err != nil {
			return nil, err
		}
		return p.session.HeadTrie(headWord)
	}
	return nil, errMissingTree
}

func (p *Prompt) cmdLookup(args []string) CommandStatus {
	root, head := p.treeFlags()
	index := p.f.Uint64("index", 0, "look up INDEX")
	as := p.f.String("as", "", "print the value as a pointer to STRUCT")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	trie, err := p.openTree(*root, *head)
	if err != nil {
		return p.reportError(err)
	}
	value, found, err := trie.Lookup(*index)
	if err != nil {
		return p.reportError(err)
	}
	if !found {
		p.output("index %d: not found\n", *index)
		return csOk
	}
	p.output("index %d: 0x%x\n", *index, value)
	if *as != "" {
		return p.dumpStruct(*as, value)
	}
	return csOk
}

func (p *Prompt) cmdWalk(args []string) CommandStatus {
	root, head := p.treeFlags()
	start := p.f.Uint64("start", 0, "start from INDEX")
	maxCount := p.f.Int("max", 0, "print at most COUNT entries, 0 for all")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	trie, err := p.openTree(*root, *head)
	if err != nil {
		return p.reportError(err)
	}
	maps := p.session.Maps()
	count := 0
	err = trie.ForEachSlot(*start, func(index, value uint64) bool {
		note := ""
		if maps != nil && !maps.Contains(value) {
			note = " (unmapped)"
		}
		p.output("%d 0x%x%s\n", index, value, note)
		count++
		return *maxCount <= 0 || count < *maxCount
	})
	if err != nil {
		return p.reportError(err)
	}
	p.output("%d entries\n", count)
	return csOk
}

func (p *Prompt) cmdNode(args []string) CommandStatus {
	addr := p.f.String("addr", "", "address ADDR of a tree node, without tag bits")
	all := p.f.Bool("all", false, "print empty slots, too")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	if *addr == "" {
		p.output("missing -addr=ADDR\n")
		return csError
	}
	nodeAddr, err := memory.ParseAddr(*addr)
	if err != nil {
		return p.reportError(err)
	}
	trie, err := p.session.HeadTrie(0)
	if err != nil {
		return p.reportError(err)
	}
	n, err := trie.ReadNode(radixtree.NodeID(nodeAddr))
	if err != nil {
		return p.reportError(err)
	}
	cfg := trie.Config()
	p.output("node 0x%x: shift %d, max index %d\n", uint64(n.ID), n.Shift, cfg.MaxIndex(n.Shift))
	used := 0
	for i, slot := range n.Slots {
		if slot.IsEmpty() {
			if *all {
				p.output("    %3d %s\n", i, slot.Kind)
			}
			continue
		}
		used++
		p.output("    %3d %-8s 0x%x\n", i, slot.Kind, slot.Word)
	}
	p.output("%d of %d slots used\n", used, len(n.Slots))
	return csOk
}

func (p *Prompt) cmdDamon(args []string) CommandStatus {
	ctx := p.f.String("ctx", "", "address ADDR of a struct damon_ctx")
	format := p.f.String("format", damon.FormatJSON, "output format: json or yaml")
	noCheck := p.f.Bool("no-check", false, "dump inconsistent contexts, too")
	maxEntries := p.f.Int("max-entries", damon.DefaultMaxEntries, "walk at most COUNT entries of any list")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	if *ctx == "" {
		p.output("missing -ctx=ADDR\n")
		return csError
	}
	addr, err := memory.ParseAddr(*ctx)
	if err != nil {
		return p.reportError(err)
	}
	mem, err := p.session.Memory()
	if err != nil {
		return p.reportError(err)
	}
	r := damon.NewReader(mem, p.session.Layout())
	r.SkipValidation = *noCheck
	r.MaxEntries = *maxEntries
	c, err := r.ReadContext(addr)
	if err != nil {
		return p.reportError(err)
	}
	data, err := c.Dump(*format)
	if err != nil {
		return p.reportError(err)
	}
	p.output("%s\n", strings.TrimRight(string(data), "\n"))
	return csOk
}

func (p *Prompt) cmdMaps(args []string) CommandStatus {
	pid := p.f.Int("pid", 0, "list address ranges of process PID instead of the inspected memory")
	ranges := p.f.String("ranges", "", "-ranges=RANGE[,RANGE...] select ranges. RANGE syntax: STARTADDR, STARTADDR-ENDADDR, STARTADDR+SIZE[kMG].")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	ar := p.session.Maps()
	if *pid > 0 {
		var err error
		if ar, err = memory.ProcMaps(*pid); err != nil {
			return p.reportError(err)
		}
	}
	if ar == nil {
		p.output("no address ranges known, use -pid PID\n")
		return csError
	}
	if *ranges != "" {
		selected, err := parseOptRanges(*ranges)
		if err != nil {
			return p.reportError(err)
		}
		ar = memory.NewAddrRanges(ar.Pid(), ar.Ranges()...)
		ar.Intersection(selected)
	}
	for _, r := range ar.Ranges() {
		p.output("%s\n", r)
	}
	p.output("%d address ranges\n", len(ar.Ranges()))
	return csOk
}

func (p *Prompt) cmdRead(args []string) CommandStatus {
	addr := p.f.String("addr", "", "read from address ADDR")
	words := p.f.Int("words", 1, "read COUNT words")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	if *addr == "" {
		p.output("missing -addr=ADDR\n")
		return csError
	}
	start, err := memory.ParseAddr(*addr)
	if err != nil {
		return p.reportError(err)
	}
	mem, err := p.session.Memory()
	if err != nil {
		return p.reportError(err)
	}
	size := p.session.Layout().WordSize
	for i := 0; i < *words; i++ {
		a := start + uint64(i*size)
		w, err := mem.ReadWord(a)
		if err != nil {
			return p.reportError(err)
		}
		p.output("%x: 0x%0*x\n", a, 2*size, w)
	}
	return csOk
}

func (p *Prompt) cmdCache(args []string) CommandStatus {
	purge := p.f.Bool("purge", false, "drop all cached memory")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	cache := p.session.Cache()
	if cache == nil {
		p.output("memory is not cached\n")
		return csOk
	}
	if *purge {
		cache.Purge()
	}
	hits, misses := cache.Stats()
	p.output("cached pages: %d, hits: %d, misses: %d\n", cache.Len(), hits, misses)
	return csOk
}

func (p *Prompt) cmdStats(args []string) CommandStatus {
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	if p.w == nil {
		return csOk
	}
	g, err := metrics.NewMetricGatherer()
	if err != nil {
		return p.reportError(err)
	}
	if err := metrics.WriteText(p.w, g); err != nil {
		return p.reportError(err)
	}
	p.w.Flush()
	return csOk
}

// dumpStruct prints the fields of the struct at addr, ordered by offset.
func (p *Prompt) dumpStruct(name string, addr uint64) CommandStatus {
	layout := p.session.Layout()
	s, err := layout.Struct(name)
	if err != nil {
		return p.reportError(err)
	}
	mem, err := p.session.Memory()
	if err != nil {
		return p.reportError(err)
	}

	names := make([]string, 0, len(s.Fields))
	for fname := range s.Fields {
		names = append(names, fname)
	}
	sort.Slice(names, func(i, j int) bool {
		fi, fj := s.Fields[names[i]], s.Fields[names[j]]
		if fi.Offset != fj.Offset {
			return fi.Offset < fj.Offset
		}
		return names[i] < names[j]
	})

	p.output("struct %s at 0x%x:\n", name, addr)
	for _, fname := range names {
		f := s.Fields[fname]
		switch f.Size {
		case 1, 2, 4, 8:
			v, err := s.Read(mem, layout.Format(), addr, fname)
			if err != nil {
				p.output("    %-28s +%-4d <%v>\n", fname, f.Offset, err)
				continue
			}
			p.output("    %-28s +%-4d 0x%x\n", fname, f.Offset, v)
		default:
			p.output("    %-28s +%-4d at 0x%x\n", fname, f.Offset, addr+f.Offset)
		}
	}
	return csOk
}

func parseOptRanges(rangeStr string) ([]memory.AddrRange, error) {
	addrRanges := []memory.AddrRange{}
	for _, s := range strings.Split(rangeStr, ",") {
		r, err := memory.NewAddrRangeFromString(s)
		if err != nil {
			return nil, err
		}
		addrRanges = append(addrRanges, *r)
	}
	return addrRanges, nil
}
