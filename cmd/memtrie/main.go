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

package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"syscall"

	"github.com/intel/memtrie/pkg/inspect"
	logger "github.com/intel/memtrie/pkg/log"
	"github.com/intel/memtrie/pkg/log/klogcontrol"
	"github.com/intel/memtrie/pkg/memory"
	"github.com/intel/memtrie/pkg/metrics"
	_ "github.com/intel/memtrie/pkg/metrics/register"
	"github.com/intel/memtrie/pkg/target"
	"github.com/intel/memtrie/pkg/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logger.Default()

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "memtrie: "+format+"\n", a...)
	logger.Flush()
	os.Exit(1)
}

func serveMetrics(addr string) {
	g, err := metrics.NewMetricGatherer()
	if err != nil {
		exit("failed to create metrics gatherer: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	go func() {
		log.Info("serving metrics at http://%s/metrics", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics server failed: %v", err)
		}
	}()
}

func main() {
	optCmds := flag.String("c", "", "run semicolon-separated prompt commands and exit")
	optCmdFile := flag.String("f", "", "run prompt commands from FILE and exit, - for stdin")
	optPrompt := flag.Bool("prompt", false, "start an interactive prompt after -c and -f")
	optEcho := flag.Bool("echo", false, "echo commands read from -f and the prompt")
	optPid := flag.Int("pid", 0, "inspect memory of process PID")
	optMethod := flag.String("method", inspect.MethodProcMem, "memory access method: mem or vm")
	optCache := flag.Int("cache", memory.DefaultCachePages, "cache PAGES pages of memory, 0 disables caching")
	optSnapshot := flag.String("snapshot", "", "inspect raw memory snapshot FILE")
	optBase := flag.String("base", "0", "address ADDR where the -snapshot was taken")
	optTarget := flag.String("target", target.DefaultPreset,
		"target layout, one of "+strings.Join(target.Presets(), ", ")+" or a layout FILE")
	optMetrics := flag.String("metrics", "", "serve prometheus metrics at ADDR, like localhost:8891")

	logger.RegisterFlags(flag.CommandLine)
	klogcontrol.RegisterFlags(flag.CommandLine)
	version.RegisterFlags(flag.CommandLine)
	flag.Parse()
	defer logger.Flush()

	if len(flag.Args()) != 0 {
		exit("unknown command-line arguments: %s", strings.Join(flag.Args(), ","))
	}

	logger.SetupDebugToggleSignal(syscall.SIGUSR1)

	session := inspect.NewSession(target.NewLayoutCache())
	defer session.Close()

	if err := session.SetLayout(*optTarget); err != nil {
		exit("%v", err)
	}

	switch {
	case *optPid != 0 && *optSnapshot != "":
		exit("-pid and -snapshot are mutually exclusive")
	case *optPid != 0:
		if err := session.AttachPid(*optPid, *optMethod, *optCache); err != nil {
			exit("%v", err)
		}
	case *optSnapshot != "":
		base, err := memory.ParseAddr(*optBase)
		if err != nil {
			exit("invalid -base %q: %v", *optBase, err)
		}
		if err := session.OpenSnapshot(*optSnapshot, base, *optCache); err != nil {
			exit("%v", err)
		}
	}

	if *optMetrics != "" {
		serveMetrics(*optMetrics)
	}

	stdout := bufio.NewWriter(os.Stdout)
	prompt := inspect.NewPrompt("memtrie> ", bufio.NewReader(os.Stdin), stdout, session)
	prompt.SetEcho(*optEcho)

	interactive := *optPrompt || (*optCmds == "" && *optCmdFile == "")

	if *optCmds != "" {
		for _, cmd := range strings.Split(*optCmds, ";") {
			prompt.RunCmdString(cmd)
		}
	}

	if *optCmdFile != "" {
		var input *bufio.Reader
		if *optCmdFile == "-" {
			input = bufio.NewReader(os.Stdin)
		} else {
			f, err := os.Open(*optCmdFile)
			if err != nil {
				exit("%v", err)
			}
			defer f.Close()
			input = bufio.NewReader(f)
		}
		prompt.SetInput(input)
		prompt.Interact()
	}

	if interactive {
		prompt.SetInput(bufio.NewReader(os.Stdin))
		prompt.Interact()
	}
}
