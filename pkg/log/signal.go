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
	"os"
	"os/signal"
)

// stopToggle stops the active debug toggle signal handler, if any.
var stopToggle func()

// SetupDebugToggleSignal toggles forced full debugging on/off whenever one
// of the given signals is received.
func SetupDebugToggleSignal(sigs ...os.Signal) {
	log.Lock()
	defer log.Unlock()

	clearDebugToggleSignal()

	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)

	go func() {
		for {
			select {
			case <-ch:
				toggleForcedDebug()
			case <-done:
				return
			}
		}
	}()

	stopToggle = func() {
		signal.Stop(ch)
		close(done)
	}
}

// ClearDebugToggleSignal removes the debug toggle signal handler.
func ClearDebugToggleSignal() {
	log.Lock()
	defer log.Unlock()
	clearDebugToggleSignal()
}

func clearDebugToggleSignal() {
	if stopToggle != nil {
		stopToggle()
		stopToggle = nil
	}
}

// toggleForcedDebug flips forced debugging and returns the new state.
func toggleForcedDebug() bool {
	log.Lock()
	log.forced = !log.forced
	forced := log.forced
	log.Unlock()

	if forced {
		deflog.Warn("forced full debugging is now on")
	} else {
		deflog.Warn("forced full debugging is now off")
	}
	return forced
}
