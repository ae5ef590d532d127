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
	"os"
)

// Level describes the severity of log messages.
type Level int

const (
	// LevelDebug is the severity for debug messages.
	LevelDebug Level = iota
	// LevelInfo is the severity for informational messages.
	LevelInfo
	// LevelWarn is the severity for warnings.
	LevelWarn
	// LevelError is the severity for errors.
	LevelError
	// LevelPanic is the severity for panic messages.
	LevelPanic
	// LevelFatal is the severity for fatal errors.
	LevelFatal
	// levelHighest is the highest externally visible level
	levelHighest
)

// Logger is the interface for producing log messages for/from a particular source.
type Logger interface {
	// Debug formats and emits a debug message.
	Debug(format string, args ...interface{})
	// Info formats and emits an informational message.
	Info(format string, args ...interface{})
	// Warn formats and emits a warning message.
	Warn(format string, args ...interface{})
	// Error formats and emits an error message.
	Error(format string, args ...interface{})
	// Panic formats and emits an error message then panics with the same.
	Panic(format string, args ...interface{})
	// Fatal formats and emits an error message and os.Exit()'s with status 1.
	Fatal(format string, args ...interface{})

	// DebugBlock formats and emits a multiline debug message.
	DebugBlock(prefix string, format string, args ...interface{})
	// InfoBlock formats and emits a multiline information message.
	InfoBlock(prefix string, format string, args ...interface{})
	// WarnBlock formats and emits a multiline warning message.
	WarnBlock(prefix string, format string, args ...interface{})
	// ErrorBlock formats and emits a multiline error message.
	ErrorBlock(prefix string, format string, args ...interface{})

	// EnableDebug enables debug messages for this Logger.
	EnableDebug(bool) bool
	// DebugEnabled checks if debug messages are enabled for this Logger.
	DebugEnabled() bool

	// Source returns the source name of this Logger.
	Source() string
}

// logger implements our Logger, indexing the per-source state in log.
type logger uint

// EnableDebug enables/disables debug logging for this logger.
func (l logger) EnableDebug(state bool) bool {
	log.Lock()
	defer log.Unlock()

	src := log.sources[l]
	old := src.debugging
	src.debugging = state
	return old
}

// DebugEnabled checks debug logging is enabled for this logger.
func (l logger) DebugEnabled() bool {
	log.RLock()
	defer log.RUnlock()

	return log.sources[l].debugging
}

// Source returns the source for the given logger.
func (l logger) Source() string {
	log.RLock()
	defer log.RUnlock()

	return log.sources[l].name
}

// Debug logs a debug message.
func (l logger) Debug(format string, args ...interface{}) {
	if name, active, emit := l.config(LevelDebug); emit {
		active.Log(LevelDebug, name, format, args...)
	}
}

// Info logs a informational message.
func (l logger) Info(format string, args ...interface{}) {
	if name, active, emit := l.config(LevelInfo); emit {
		active.Log(LevelInfo, name, format, args...)
	}
}

// Warn logs a warning message.
func (l logger) Warn(format string, args ...interface{}) {
	if name, active, emit := l.config(LevelWarn); emit {
		active.Log(LevelWarn, name, format, args...)
	}
}

// Error logs an error message.
func (l logger) Error(format string, args ...interface{}) {
	if name, active, emit := l.config(LevelError); emit {
		active.Log(LevelError, name, format, args...)
	}
}

// Fatal logs a fatal error message and os.Exit(1)'s.
func (l logger) Fatal(format string, args ...interface{}) {
	name, active, _ := l.config(LevelFatal)
	active.Log(LevelFatal, name, format, args...)
	active.Sync()

	os.Exit(1)
}

// Panic logs a panic message and panic()'s.
func (l logger) Panic(format string, args ...interface{}) {
	name, active, _ := l.config(LevelPanic)
	active.Log(LevelPanic, name, format, args...)
	active.Sync()

	panic(fmt.Sprintf(name+" "+format, args...))
}

// DebugBlock logs a multi-line debug message.
func (l logger) DebugBlock(prefix string, format string, args ...interface{}) {
	if name, active, emit := l.config(LevelDebug); emit {
		active.Block(LevelDebug, name, prefix, format, args...)
	}
}

// InfoBlock logs a multi-line informational message.
func (l logger) InfoBlock(prefix string, format string, args ...interface{}) {
	if name, active, emit := l.config(LevelInfo); emit {
		active.Block(LevelInfo, name, prefix, format, args...)
	}
}

// WarnBlock logs a multi-line warning message.
func (l logger) WarnBlock(prefix string, format string, args ...interface{}) {
	if name, active, emit := l.config(LevelWarn); emit {
		active.Block(LevelWarn, name, prefix, format, args...)
	}
}

// ErrorBlock logs a multi-line error message.
func (l logger) ErrorBlock(prefix string, format string, args ...interface{}) {
	if name, active, emit := l.config(LevelError); emit {
		active.Block(LevelError, name, prefix, format, args...)
	}
}

// config returns the logger's source name, the active backend and if the level is logged.
func (l logger) config(level Level) (string, Backend, bool) {
	log.RLock()
	defer log.RUnlock()

	src := log.sources[l]
	switch {
	case level == LevelDebug:
		return src.name, log.active, src.debugging || log.forced
	case level < log.level:
		return src.name, log.active, false
	case level == LevelInfo:
		return src.name, log.active, src.logging
	default:
		return src.name, log.active, true
	}
}
