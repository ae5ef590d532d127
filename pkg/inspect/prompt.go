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

// This file implements interactive prompt and command execution.

package inspect

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
)

// Cmd is a prompt command.
type Cmd struct {
	description string
	Run         func([]string) CommandStatus
}

// Prompt reads commands and runs them against a Session.
type Prompt struct {
	r       *bufio.Reader
	w       *bufio.Writer
	f       *flag.FlagSet
	session *Session
	cmds    map[string]Cmd
	ps1     string
	echo    bool
	quit    bool
}

// CommandStatus is the outcome of a command.
type CommandStatus int

const (
	csOk CommandStatus = iota
	csUnknownCommand
	csPipeCreateError
	csPipeProcessStartError
	csError
)

// NewPrompt creates a prompt reading commands from reader and writing
// their output to writer.
func NewPrompt(ps1 string, reader *bufio.Reader, writer *bufio.Writer, session *Session) *Prompt {
	if session == nil {
		session = NewSession(nil)
	}
	p := Prompt{
		r:       reader,
		w:       writer,
		ps1:     ps1,
		session: session,
	}
	p.cmds = map[string]Cmd{
		"q":        {"quit interactive prompt.", p.cmdQuit},
		"attach":   {"inspect memory of a live process.", p.cmdAttach},
		"snapshot": {"inspect a raw memory snapshot file.", p.cmdSnapshot},
		"target":   {"select or show the target layout.", p.cmdTarget},
		"lookup":   {"look up an index in a radix tree.", p.cmdLookup},
		"walk":     {"list entries of a radix tree in index order.", p.cmdWalk},
		"node":     {"show the slots of a radix tree node.", p.cmdNode},
		"damon":    {"dump the state of a DAMON context.", p.cmdDamon},
		"maps":     {"list mapped address ranges.", p.cmdMaps},
		"read":     {"read words of memory.", p.cmdRead},
		"cache":    {"show or drop the memory cache.", p.cmdCache},
		"stats":    {"print statistics.", p.cmdStats},
		"help":     {"print help.", p.cmdHelp},
		"nop":      {"no operation.", p.cmdNop},
	}
	return &p
}

func (p *Prompt) output(format string, a ...interface{}) {
	if p.w == nil {
		return
	}
	p.w.WriteString(fmt.Sprintf(format, a...))
	p.w.Flush()
}

// RunCmdSlice runs a command given as a command name and its arguments.
func (p *Prompt) RunCmdSlice(cmdSlice []string) CommandStatus {
	if len(cmdSlice) == 0 {
		return csOk
	}
	if cmdSlice[0] == "" {
		cmdSlice[0] = "nop"
	}
	p.f = flag.NewFlagSet(cmdSlice[0], flag.ContinueOnError)
	if p.w != nil {
		p.f.SetOutput(p.w)
	}
	cmd, ok := p.cmds[cmdSlice[0]]
	if !ok {
		if len(cmdSlice[0]) > 0 {
			p.output("unknown command %q\n", cmdSlice[0])
		}
		return csUnknownCommand
	}
	// Call cmd<Function>
	return cmd.Run(cmdSlice[1:])
}

// RunCmdString runs a command line. Output of a command followed by
// "| shell-command" is piped to the shell command.
func (p *Prompt) RunCmdString(cmdString string) CommandStatus {
	var err error
	origOutputWriter := p.w
	pipeCmd := ""
	pipeIndex := strings.Index(cmdString, "|")
	if pipeIndex > -1 {
		pipeCmd = cmdString[pipeIndex+1:]
		cmdString = cmdString[:pipeIndex]
	}
	cmdSlice := strings.Fields(cmdString)
	if len(cmdSlice) == 0 {
		cmdSlice = []string{""}
	}

	// If there is a pipe, redirect p.output() (that is, p.w) to
	// the pipe before calling cmd<Function>.
	var pipeProcess *exec.Cmd
	var pipeInput io.WriteCloser
	if pipeCmd != "" {
		pipeProcess = exec.Command("sh", "-c", pipeCmd)
		pipeInput, err = pipeProcess.StdinPipe()
		if err != nil {
			p.output("failed to create pipe for command %q", pipeCmd)
			return csPipeCreateError
		}
		pipeProcess.Stdout = origOutputWriter
		pipeProcess.Stderr = origOutputWriter
		if err := pipeProcess.Start(); err != nil {
			p.output("failed to start: sh -c %q: %s", pipeCmd, err)
			pipeInput.Close()
			return csPipeProcessStartError
		}
		p.w = bufio.NewWriter(pipeInput)
	}
	runRv := p.RunCmdSlice(cmdSlice)
	// Wait for pipe process to exit and restore redirect.
	if pipeCmd != "" {
		p.w.Flush()
		pipeInput.Close()
		if err := pipeProcess.Wait(); err != nil {
			log.Debug("pipe command %q: %v", pipeCmd, err)
		}
		p.w = origOutputWriter
		p.w.Flush()
	}
	return runRv
}

// Interact runs commands read from the input until it ends or q is given.
func (p *Prompt) Interact() {
	for !p.quit {
		p.output(p.ps1)
		cmdString, err := p.r.ReadString(byte('\n'))
		if err != nil && cmdString == "" {
			if err != io.EOF {
				p.output("quit: %s\n", err)
			}
			break
		}
		if p.echo {
			p.output("%s\n", strings.TrimRight(cmdString, "\n"))
		}
		p.RunCmdString(cmdString)
	}
	p.output("quit.\n")
}

// SetEcho enables echoing commands before running them.
func (p *Prompt) SetEcho(newEcho bool) {
	p.echo = newEcho
}

// SetInput sets the source of commands for Interact.
func (p *Prompt) SetInput(reader *bufio.Reader) {
	p.r = reader
	p.quit = false
}

// Session returns the session of the prompt.
func (p *Prompt) Session() *Session {
	return p.session
}

func sortedStringKeys(m map[string]Cmd) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Prompt) cmdNop(args []string) CommandStatus {
	return csOk
}

func (p *Prompt) cmdQuit(args []string) CommandStatus {
	p.quit = true
	return csOk
}

func (p *Prompt) cmdHelp(args []string) CommandStatus {
	p.output("Available commands:\n")
	for _, name := range sortedStringKeys(p.cmds) {
		p.output("        %-12s %s\n", name, p.cmds[name].description)
	}
	p.output("Syntax:\n")
	p.output("        <command> -h show help on command options.\n")
	p.output("        [command] | <shell-command>\n")
	p.output("                     pipe command output to shell-command.\n")
	p.output("Addresses are hexadecimal, indices accept 0x prefixed hexadecimal.\n")
	return csOk
}
