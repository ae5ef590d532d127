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

package memory

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBytes parses a size with an optional k, M, G or T unit, optionally
// followed by iB or B, for instance 4k, 1MB or 2GiB.
func ParseBytes(s string) (int64, error) {
	origS := s
	factor := int64(1)
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return 0, fmt.Errorf("syntax error in bytes: string is empty")
	}
	s = strings.TrimSuffix(s, "B")
	s = strings.TrimSuffix(s, "i")
	if len(s) == 0 {
		return 0, fmt.Errorf("syntax error in bytes %q: missing number", origS)
	}
	numpart := s[:len(s)-1]
	switch c := s[len(s)-1]; {
	case c == 'k' || c == 'K':
		factor = 1 << 10
	case c == 'M':
		factor = 1 << 20
	case c == 'G':
		factor = 1 << 30
	case c == 'T':
		factor = 1 << 40
	case '0' <= c && c <= '9':
		numpart = s
	default:
		return 0, fmt.Errorf("syntax error in bytes %q: unexpected unit %q", origS, c)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(numpart), 10, 0)
	if err != nil {
		return 0, fmt.Errorf("syntax error in bytes %q: bad numeric part %q", origS, numpart)
	}
	return n * factor, nil
}

// MustParseBytes is ParseBytes that panics on error.
func MustParseBytes(s string) int64 {
	bytes, err := ParseBytes(s)
	if err != nil {
		panic(err)
	}
	return bytes
}
