// Copyright 2019 Intel Corporation. All Rights Reserved.
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

// Package log implements source-keyed logging with pluggable backends.
package log

// Help is the usage text for the logger command line options.
const Help = `
Logging and debugging messages.

Every log source (radixtree, memory, damon, inspect, ...) can be enabled or
disabled separately for normal and for debug messages. The lowest severity
of messages to pass through is controlled with -logger-level, which accepts
debug, info, warning and error.

Sources are listed comma-separated and can be prefixed with 'on:' or 'off:'
to toggle them. For instance, to turn on debugging for all sources except
memory use

  -logger-debug on:*,off:memory

As an alternative for '*' you can also use 'all'. The backend emitting the
messages is selected with -logger, either fmt (default) or klog.
`
