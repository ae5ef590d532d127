// Copyright 2019-2020 Intel Corporation. All Rights Reserved.
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

// Package klogcontrol exposes the flags of k8s.io/klog/v2 with a klog-
// prefix, so they can be given alongside our own flags when the klog
// logger backend is in use.
package klogcontrol

import (
	"flag"
	"io"
	"os"
	"strings"

	"k8s.io/klog/v2"
)

// EnvPrefix prefixes environment variables giving defaults for klog flags.
const EnvPrefix = "MEMTRIE_KLOG_"

// klogFlags holds the flags registered by klog.
var klogFlags *flag.FlagSet

// klogflag wraps a klog flag for registration under another name.
type klogflag struct {
	flag *flag.Flag
}

func (klogf *klogflag) Set(value string) error {
	if klogf.flag.Name == "stderrthreshold" { // klog expects thresholds in ALL CAPS
		value = strings.ToUpper(value)
	}
	return klogf.flag.Value.Set(value)
}

func (klogf *klogflag) String() string {
	if klogf.flag == nil { // flag.isZeroValue() probing us...
		return ""
	}
	value := klogf.flag.Value.String()
	if klogf.flag.Name == "log_backtrace_at" && value == ":0" {
		value = ""
	}
	return value
}

func (klogf *klogflag) IsBoolFlag() bool {
	if klogf.flag == nil {
		return false
	}
	if boolf, ok := klogf.flag.Value.(interface{ IsBoolFlag() bool }); ok {
		return boolf.IsBoolFlag()
	}
	return false
}

// envName returns the environment variable with the default for a klog flag.
func envName(name string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// RegisterFlags registers klog flags, prefixed with klog-, in fs. Flags with
// a default set in the environment are set accordingly.
func RegisterFlags(fs *flag.FlagSet) {
	klogFlags.VisitAll(func(f *flag.Flag) {
		klogf := &klogflag{flag: f}
		fs.Var(klogf, "klog-"+f.Name, f.Usage)

		env := envName(f.Name)
		if value, ok := os.LookupEnv(env); ok {
			if err := klogf.Set(value); err != nil {
				klog.Errorf("klog flag %q: invalid environment default %s=%q: %v",
					f.Name, env, value, err)
			}
		}
	})
}

func init() {
	klogFlags = flag.NewFlagSet("klog flags", flag.ContinueOnError)
	klogFlags.SetOutput(io.Discard)
	klog.InitFlags(klogFlags)
}
