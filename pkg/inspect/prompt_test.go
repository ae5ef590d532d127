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
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/intel/memtrie/pkg/memory"
	"github.com/intel/memtrie/pkg/target"
	"github.com/stretchr/testify/require"
)

const (
	treeRoot  = 0x1000
	treeNode  = 0x100000
	badRoot   = 0x2000
	badNode   = 0x200000
	nodeSize  = 576
	slotsBase = 40
)

// newTestPrompt returns a prompt inspecting fixture memory with a
// single level tree at treeRoot and a corrupt one at badRoot.
func newTestPrompt(t require.TestingT) (*Prompt, *bytes.Buffer) {
	layout := target.Preset(target.DefaultPreset)
	mem := memory.NewFixture(layout.Format())

	mem.Zero(treeNode, nodeSize)
	mem.PutWords(treeRoot, 0, treeNode|2)
	mem.PutWord(treeNode+slotsBase+3*8, 0x20000)
	mem.PutWord(treeNode+slotsBase+5*8, 0x30000)
	mem.PutWords(0x20000, 0x1111, 0x2222)

	mem.Zero(badNode, nodeSize)
	mem.PutWords(badRoot, 0, badNode|2)
	mem.PutUint(badNode, 1, 3)

	out := &bytes.Buffer{}
	p := NewPrompt("test> ", bufio.NewReader(strings.NewReader("")), bufio.NewWriter(out), nil)
	require.NoError(t, p.Session().UseReader("fixture", mem, 4))
	return p, out
}

func run(t *testing.T, p *Prompt, out *bytes.Buffer, cmd string) (CommandStatus, string) {
	out.Reset()
	status := p.RunCmdString(cmd)
	return status, out.String()
}

func TestHelpAndUnknown(t *testing.T) {
	p, out := newTestPrompt(t)

	status, text := run(t, p, out, "help")
	require.Equal(t, csOk, status)
	for name := range p.cmds {
		require.Contains(t, text, name)
	}

	status, text = run(t, p, out, "frobnicate -x")
	require.Equal(t, csUnknownCommand, status)
	require.Contains(t, text, `unknown command "frobnicate"`)

	status, _ = run(t, p, out, "")
	require.Equal(t, csOk, status)
}

func TestLookupAndWalk(t *testing.T) {
	p, out := newTestPrompt(t)

	status, text := run(t, p, out, "lookup -root 1000 -index 3")
	require.Equal(t, csOk, status)
	require.Equal(t, "index 3: 0x20000\n", text)

	status, text = run(t, p, out, "lookup -root 0x1000 -index 4")
	require.Equal(t, csOk, status)
	require.Equal(t, "index 4: not found\n", text)

	status, text = run(t, p, out, "lookup -root 1000 -index 100000")
	require.Equal(t, csOk, status)
	require.Equal(t, "index 100000: not found\n", text)

	status, text = run(t, p, out, "walk -root 1000")
	require.Equal(t, csOk, status)
	require.Equal(t, "3 0x20000\n5 0x30000\n2 entries\n", text)

	status, text = run(t, p, out, "walk -root 1000 -start 4")
	require.Equal(t, csOk, status)
	require.Equal(t, "5 0x30000\n1 entries\n", text)

	status, text = run(t, p, out, "walk -root 1000 -max 1")
	require.Equal(t, csOk, status)
	require.Equal(t, "3 0x20000\n1 entries\n", text)

	status, text = run(t, p, out, "walk -head 0x40001")
	require.Equal(t, csOk, status)
	require.Equal(t, "0 0x40001\n1 entries\n", text)

	status, text = run(t, p, out, "walk")
	require.Equal(t, csError, status)
	require.Contains(t, text, "missing tree")
}

func TestTreeSelection(t *testing.T) {
	p, out := newTestPrompt(t)

	for _, cmd := range []string{"walk -root 0", "lookup -root=0x0 -index 1"} {
		status, text := run(t, p, out, cmd)
		require.Equal(t, csError, status, cmd)
		require.Contains(t, text, "invalid tree root address 0", cmd)
	}

	status, text := run(t, p, out, "walk -root 1000 -head 0x40001")
	require.Equal(t, csError, status)
	require.Contains(t, text, "not both")
}

func TestNode(t *testing.T) {
	p, out := newTestPrompt(t)

	status, text := run(t, p, out, "node -addr 100000")
	require.Equal(t, csOk, status)
	require.True(t, strings.HasPrefix(text, "node 0x100000: shift 0, max index 63\n"), "unexpected output %q", text)
	require.Regexp(t, `\n\s+3 leaf\s+0x20000\n`, text)
	require.Regexp(t, `\n\s+5 leaf\s+0x30000\n`, text)
	require.NotContains(t, text, "empty")
	require.True(t, strings.HasSuffix(text, "2 of 64 slots used\n"), "unexpected output %q", text)

	status, text = run(t, p, out, "node -addr 100000 -all")
	require.Equal(t, csOk, status)
	require.Equal(t, 62, strings.Count(text, " empty\n"))

	status, text = run(t, p, out, "node -addr 200000")
	require.Equal(t, csError, status)
	require.True(t, strings.HasPrefix(text, "corrupt: "), "unexpected output %q", text)

	status, text = run(t, p, out, "node")
	require.Equal(t, csError, status)
	require.Contains(t, text, "missing -addr")
}

func TestLookupAsStruct(t *testing.T) {
	p, out := newTestPrompt(t)

	status, text := run(t, p, out, "lookup -root 1000 -index 3 -as list_head")
	require.Equal(t, csOk, status)
	require.Contains(t, text, "struct list_head at 0x20000:")
	require.Regexp(t, `next\s+\+0\s+0x1111`, text)
	require.Regexp(t, `prev\s+\+8\s+0x2222`, text)

	status, text = run(t, p, out, "lookup -root 1000 -index 3 -as no_such_struct")
	require.Equal(t, csError, status)
	require.Contains(t, text, "no_such_struct")
}

func TestCorruptTree(t *testing.T) {
	p, out := newTestPrompt(t)

	status, text := run(t, p, out, "walk -root 2000")
	require.Equal(t, csError, status)
	require.True(t, strings.HasPrefix(text, "corrupt: "), "unexpected output %q", text)
	require.Contains(t, text, "0x200000")

	status, text = run(t, p, out, "lookup -root 2000 -index 1")
	require.Equal(t, csError, status)
	require.True(t, strings.HasPrefix(text, "corrupt: "), "unexpected output %q", text)
}

func TestReadAndCache(t *testing.T) {
	p, out := newTestPrompt(t)

	status, text := run(t, p, out, "read -addr 20000 -words 2")
	require.Equal(t, csOk, status)
	require.Equal(t, "20000: 0x0000000000001111\n20008: 0x0000000000002222\n", text)

	status, text = run(t, p, out, "read -addr 50000")
	require.Equal(t, csError, status)
	require.True(t, strings.HasPrefix(text, "error: "), "unexpected output %q", text)

	status, text = run(t, p, out, "cache -purge")
	require.Equal(t, csOk, status)
	require.Contains(t, text, "cached pages: 0")
}

func TestTarget(t *testing.T) {
	p, out := newTestPrompt(t)

	status, text := run(t, p, out, "target -ls")
	require.Equal(t, csOk, status)
	for _, name := range target.Presets() {
		require.Contains(t, text, name)
	}

	status, _ = run(t, p, out, "target -preset linux-small")
	require.Equal(t, csOk, status)
	require.Equal(t, uint(4), p.Session().Layout().MapShift)

	status, text = run(t, p, out, "target -dump")
	require.Equal(t, csOk, status)
	require.Contains(t, text, "mapShift: 4")

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base: linux-x86_64\nmapShift: 3\n"), 0o644))
	status, _ = run(t, p, out, "target -load "+path)
	require.Equal(t, csOk, status)
	require.Equal(t, uint(3), p.Session().Layout().MapShift)

	status, text = run(t, p, out, "target -preset no-such-preset")
	require.Equal(t, csError, status)
	require.True(t, strings.HasPrefix(text, "error: "), "unexpected output %q", text)
}

func TestNoMemory(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPrompt("", bufio.NewReader(strings.NewReader("")), bufio.NewWriter(out), nil)

	for _, cmd := range []string{"walk -root 1000", "read -addr 1000", "damon -ctx 1000"} {
		status, text := run(t, p, out, cmd)
		require.Equal(t, csError, status, cmd)
		require.Contains(t, text, "no memory to inspect", cmd)
	}
}

func TestSnapshot(t *testing.T) {
	p, out := newTestPrompt(t)

	data := make([]byte, 64)
	data[8] = 0x05
	path := filepath.Join(t.TempDir(), "mem.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	status, text := run(t, p, out, "snapshot -file "+path+" -base 7000")
	require.Equal(t, csOk, status, text)

	status, text = run(t, p, out, "read -addr 7008")
	require.Equal(t, csOk, status)
	require.Equal(t, "7008: 0x0000000000000005\n", text)

	status, text = run(t, p, out, "maps")
	require.Equal(t, csOk, status)
	require.Equal(t, "7000-7040\n1 address ranges\n", text)

	status, text = run(t, p, out, "maps -ranges 7000+16")
	require.Equal(t, csOk, status)
	require.Equal(t, "7000-7010\n1 address ranges\n", text)

	status, text = run(t, p, out, "walk -root 7000")
	require.Equal(t, csOk, status)
	require.Equal(t, "0 0x5 (unmapped)\n1 entries\n", text)
}

func TestStats(t *testing.T) {
	p, out := newTestPrompt(t)

	run(t, p, out, "walk -root 1000")
	status, text := run(t, p, out, "stats")
	require.Equal(t, csOk, status)
	require.Contains(t, text, "radixtree_nodes_visited_total")
	require.Contains(t, text, "memory_reads_total")
}

func TestPipe(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no shell available")
	}
	p, out := newTestPrompt(t)

	status, text := run(t, p, out, "walk -root 1000 | grep -c 0x")
	require.Equal(t, csOk, status)
	require.Equal(t, "2\n", text)
}

func TestInteract(t *testing.T) {
	p, out := newTestPrompt(t)
	p.SetInput(bufio.NewReader(strings.NewReader("lookup -root 1000 -index 5\nq\nhelp\n")))
	p.SetEcho(true)
	out.Reset()
	p.Interact()

	text := out.String()
	require.Contains(t, text, "test> lookup -root 1000 -index 5\nindex 5: 0x30000\n")
	require.NotContains(t, text, "Available commands")
	require.True(t, strings.HasSuffix(text, "quit.\n"))
}

func FuzzPrompt(f *testing.F) {
	testcases := []string{
		"help",
		"nop",
		"target -ls",
		"target -preset linux-i386 -dump",
		"lookup -root 1000 -index 3 -as list_head",
		"lookup -head 0x100002 -index 0",
		"walk -root 1000 -start 0xffffffffffffffff",
		"walk -root 2000",
		"walk -root 0",
		"node -addr 100000 -all",
		"read -addr 100000 -words 8",
		"damon -ctx 20000 -format yaml",
		"damon -ctx 1000 -no-check",
		"maps -ranges 1000-2000",
		"cache",
		"stats",
		"q",
	}
	for _, tc := range testcases {
		f.Add(tc)
	}

	p, out := newTestPrompt(f)

	f.Fuzz(func(t *testing.T, input string) {
		if strings.Contains(input, "|") {
			// Do not fuzz inputs with pipes, as it would
			// execute fuzzed strings in shell.
			return
		}
		if strings.Contains(input, "attach") || strings.Contains(input, "snapshot") {
			return
		}
		t.Logf("input: %q\n", input)
		out.Reset()
		p.RunCmdString(input)
		time.Sleep(time.Millisecond)
		t.Logf("---response-begin---\n%s---response-end---\n", out.String())
	})
}
