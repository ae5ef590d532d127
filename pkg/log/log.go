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
	"fmt"
	"sort"
	"strings"
	"sync"
)

// source is the runtime state of a single log source.
type source struct {
	name      string
	logging   bool
	debugging bool
}

// state is our runtime logging state.
type state struct {
	sync.RWMutex
	level   Level                // lowest unsuppressed severity
	forced  bool                 // forced full debugging
	active  Backend              // active backend
	backend map[string]BackendFn // registered backends
	sources []*source            // sources, indexed by logger
	loggers map[string]logger    // source name to logger
	enable  srcmap               // logging by source
	debug   srcmap               // debugging by source
	align   int                  // longest source name seen
}

var log = &state{
	level:   DefaultLevel,
	backend: make(map[string]BackendFn),
	loggers: make(map[string]logger),
	enable:  make(srcmap),
	debug:   make(srcmap),
}

const (
	// DefaultLevel is the default logging severity level.
	DefaultLevel = LevelInfo
)

// Get returns the Logger for the given source, creating it if necessary.
func Get(name string) Logger {
	log.Lock()
	defer log.Unlock()
	return log.get(name)
}

// NewLogger is an alias for Get.
func NewLogger(name string) Logger {
	return Get(name)
}

func (s *state) get(name string) logger {
	name = strings.Trim(name, "[] ")
	if l, ok := s.loggers[name]; ok {
		return l
	}

	l := logger(len(s.sources))
	s.sources = append(s.sources, &source{
		name:      name,
		logging:   s.enable.enabled(name, true),
		debugging: s.debug.enabled(name, false),
	})
	s.loggers[name] = l

	if len(name) > s.align {
		s.align = len(name)
		if s.active != nil {
			s.active.SetSourceAlignment(s.align)
		}
	}

	return l
}

// SetLevel sets the lowest severity of messages to emit.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()
	log.level = level
}

// SetBackend activates the named logging backend.
func SetBackend(name string) error {
	log.Lock()
	defer log.Unlock()

	fn, ok := log.backend[name]
	if !ok {
		return loggerError("unknown logger backend %q", name)
	}
	if log.active != nil {
		if log.active.Name() == name {
			return nil
		}
		log.active.Stop()
	}
	log.active = fn()
	log.active.SetSourceAlignment(log.align)

	return nil
}

// Flush flushes any messages buffered by the active backend.
func Flush() {
	log.RLock()
	active := log.active
	log.RUnlock()
	active.Flush()
}

// EnableLogging sets normal logging for the given sources, using the
// same syntax as the -logger-sources command line option.
func EnableLogging(spec string) error {
	log.Lock()
	defer log.Unlock()
	if err := log.enable.parse(spec); err != nil {
		return err
	}
	for _, src := range log.sources {
		src.logging = log.enable.enabled(src.name, true)
	}
	return nil
}

// EnableDebugging sets debug logging for the given sources, using the
// same syntax as the -logger-debug command line option.
func EnableDebugging(spec string) error {
	log.Lock()
	defer log.Unlock()
	if err := log.debug.parse(spec); err != nil {
		return err
	}
	for _, src := range log.sources {
		src.debugging = log.debug.enabled(src.name, false)
	}
	return nil
}

// Sources returns the names of all known log sources.
func Sources() []string {
	log.RLock()
	defer log.RUnlock()
	names := make([]string, 0, len(log.sources))
	for _, src := range log.sources {
		names = append(names, src.name)
	}
	sort.Strings(names)
	return names
}

// srcmap tracks logging or debugging settings for sources.
type srcmap map[string]bool

// enabled returns the state for the given source, falling back to '*' and then def.
func (m srcmap) enabled(name string, def bool) bool {
	if state, ok := m[name]; ok {
		return state
	}
	if state, ok := m["*"]; ok {
		return state
	}
	return def
}

// parse updates the srcmap from a [on:|off:]src[,src...] specification.
func (m srcmap) parse(value string) error {
	prev := ""
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		state, src := "", entry
		if split := strings.SplitN(entry, ":", 2); len(split) == 2 {
			state, src = split[0], split[1]
		}
		if state != "" {
			prev = state
		} else {
			state = prev
			if state == "" {
				state = "on"
			}
		}
		if src == "all" {
			src = "*"
		}
		enabled, err := parseEnabled(state)
		if err != nil {
			return loggerError("invalid state %q for source %q", state, src)
		}
		m[src] = enabled
	}
	return nil
}

// String returns a string representation of the srcmap.
func (m srcmap) String() string {
	on, off := []string{}, []string{}
	for src, state := range m {
		if state {
			on = append(on, src)
		} else {
			off = append(off, src)
		}
	}
	sort.Strings(on)
	sort.Strings(off)
	switch {
	case len(off) == 0:
		return "on:" + strings.Join(on, ",")
	case len(on) == 0:
		return "off:" + strings.Join(off, ",")
	}
	return "on:" + strings.Join(on, ",") + ",off:" + strings.Join(off, ",")
}

func parseEnabled(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "true", "enable", "enabled", "1", "yes":
		return true, nil
	case "off", "false", "disable", "disabled", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid enabled state %q", value)
}

// loggerError returns a package-specific formatted error.
func loggerError(format string, args ...interface{}) error {
	return fmt.Errorf("logger: "+format, args...)
}
