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

package log

import (
	"flag"
	"strings"
)

const (
	// command-line argument prefix.
	optPrefix = "logger"
	// Flag for enabling/disabling normal non-debug logging for sources.
	optEnable = optPrefix + "-sources"
	// Flag for enabling/disabling debug logging for sources.
	optDebug = optPrefix + "-debug"
	// Flag for selecting logging level.
	optLevel = optPrefix + "-level"
	// Flag for selecting logging backend.
	optLogger = optPrefix
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warning",
	LevelError: "error",
	LevelFatal: "fatal",
	LevelPanic: "panic",
}

// ParseLevel parses the name of a severity level.
func ParseLevel(value string) (Level, error) {
	for level, name := range levelNames {
		if strings.EqualFold(name, value) {
			return level, nil
		}
	}
	if strings.EqualFold(value, "warn") {
		return LevelWarn, nil
	}
	return LevelInfo, loggerError("invalid logging level %q", value)
}

// String returns the name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return levelNames[LevelInfo]
}

// levelFlag sets the logging level from the command line.
type levelFlag struct{}

func (levelFlag) Set(value string) error {
	level, err := ParseLevel(value)
	if err != nil {
		return err
	}
	SetLevel(level)
	return nil
}

func (levelFlag) String() string {
	log.RLock()
	defer log.RUnlock()
	return log.level.String()
}

// srcFlag enables sources for logging or debugging from the command line.
type srcFlag struct {
	debug bool
}

func (f srcFlag) Set(value string) error {
	if f.debug {
		return EnableDebugging(value)
	}
	return EnableLogging(value)
}

func (f srcFlag) String() string {
	log.RLock()
	defer log.RUnlock()
	if f.debug {
		return log.debug.String()
	}
	return log.enable.String()
}

// backendFlag selects the active backend from the command line.
type backendFlag struct{}

func (backendFlag) Set(value string) error {
	return SetBackend(value)
}

func (backendFlag) String() string {
	log.RLock()
	defer log.RUnlock()
	if log.active == nil {
		return FmtBackendName
	}
	return log.active.Name()
}

// RegisterFlags registers the logger command line options in the given FlagSet.
func RegisterFlags(fs *flag.FlagSet) {
	fs.Var(levelFlag{}, optLevel, "lowest severity to log: debug, info, warning or error")
	fs.Var(srcFlag{}, optEnable, "[on:|off:]SOURCE[,...] sources to enable/disable logging for")
	fs.Var(srcFlag{debug: true}, optDebug, "[on:|off:]SOURCE[,...] sources to enable/disable debugging for")
	fs.Var(backendFlag{}, optLogger, "logger backend to use: fmt or klog")
}
