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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAddrRangeFromString(t *testing.T) {
	tcases := []struct {
		name           string
		input          string
		expectedOutput *AddrRange
		expectedError  string
	}{
		{
			name:          "empty string",
			input:         "",
			expectedError: "invalid",
		}, {
			name:          "missing start-end",
			input:         "-",
			expectedError: "invalid",
		}, {
			name:          "missing end",
			input:         "42-",
			expectedError: "invalid",
		}, {
			name:          "missing start+size",
			input:         "+",
			expectedError: "invalid",
		}, {
			name:          "missing size",
			input:         "42+",
			expectedError: "invalid",
		}, {
			name:          "not hex",
			input:         "xyz",
			expectedError: "invalid",
		}, {
			name:           "zero",
			input:          "0",
			expectedOutput: NewAddrRange(0, defaultRangeLength),
		}, {
			name:           "single number",
			input:          "4",
			expectedOutput: NewAddrRange(4, 4+defaultRangeLength),
		}, {
			name:           "0x prefix",
			input:          "0xffff888000000000",
			expectedOutput: NewAddrRange(0xffff888000000000, 0xffff888000000000+defaultRangeLength),
		}, {
			name:           "single number range",
			input:          "4-6",
			expectedOutput: NewAddrRange(4, 6),
		}, {
			name:           "64-bit range",
			input:          "deadbeefcafebabe-deadcafebeefbabe",
			expectedOutput: NewAddrRange(0xdeadbeefcafebabe, 0xdeadcafebeefbabe),
		}, {
			name:           "64-bit start>end range",
			input:          "deadcafebeefbabe-deadbeefcafebabe",
			expectedOutput: NewAddrRange(0xdeadbeefcafebabe, 0xdeadcafebeefbabe),
		}, {
			name:           "single number size with bytes",
			input:          "4+1MB",
			expectedOutput: NewAddrRange(4, 4+1024*1024),
		}, {
			name:           "64-bit size without bytes",
			input:          "deadbeefcafebabe+1G",
			expectedOutput: NewAddrRange(0xdeadbeefcafebabe, 0xdeadbeefcafebabe+1024*1024*1024),
		}, {
			name:           "first kibibyte",
			input:          "0+1kiB",
			expectedOutput: NewAddrRange(0, 1024),
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			output, err := NewAddrRangeFromString(tc.input)
			seenError := fmt.Sprintf("%s", err)
			if tc.expectedError != "" {
				if !strings.Contains(seenError, tc.expectedError) {
					t.Errorf("expected error containing %q, got %q",
						tc.expectedError, seenError)
				}
			} else if err != nil {
				t.Errorf("got unexpected error: %q", seenError)
			}
			if tc.expectedOutput != nil && !tc.expectedOutput.Equals(output) {
				t.Errorf("expected output %q got %q",
					tc.expectedOutput, output)
			}
		})
	}
}

func TestAddrRangesContains(t *testing.T) {
	ar := NewAddrRanges(1,
		*NewAddrRange(0x3000, 0x4000),
		*NewAddrRange(0x1000, 0x2000),
	)
	require.Equal(t, "1000-2000,3000-4000", ar.String())

	for addr, expected := range map[uint64]bool{
		0x0fff: false,
		0x1000: true,
		0x1fff: true,
		0x2000: false,
		0x3800: true,
		0x4000: false,
	} {
		require.Equal(t, expected, ar.Contains(addr), "address 0x%x", addr)
	}
}

func TestAddrRangesIntersection(t *testing.T) {
	ar := NewAddrRanges(1,
		*NewAddrRange(0x1000, 0x5000),
		*NewAddrRange(0x8000, 0x9000),
	)
	ar.Intersection([]AddrRange{
		*NewAddrRange(0x0, 0x2000),
		*NewAddrRange(0x4000, 0x8800),
	})
	require.Equal(t, "1000-2000,4000-5000,8000-8800", ar.String())
}

func TestParseMaps(t *testing.T) {
	maps := `55d74cf13000-55d74cf14000 rw-p 00003000 fe:03 1194719   /usr/bin/python3.8
55d74e76d000-55d74e968000 rw-p 00000000 00:00 0         [heap]
garbage
7f3bcfe69000-7f3c4fe6a000 rw-p 00000000 00:00 0
`
	ranges := parseMaps(maps)
	require.Len(t, ranges, 3)
	require.Equal(t, uint64(0x55d74cf13000), ranges[0].Addr())
	require.Equal(t, uint64(0x1000), ranges[0].Length())
	require.Equal(t, uint64(0x7f3c4fe6a000), ranges[2].EndAddr())
}

func TestParseBytes(t *testing.T) {
	for input, expected := range map[string]int64{
		"0":    0,
		"42":   42,
		"4k":   4096,
		"4K":   4096,
		"1kiB": 1024,
		"2MB":  2 << 20,
		"1GiB": 1 << 30,
		"1T":   1 << 40,
	} {
		bytes, err := ParseBytes(input)
		require.NoError(t, err, input)
		require.Equal(t, expected, bytes, input)
	}
	for _, input := range []string{"", "B", "k", "12X", "1.5M"} {
		_, err := ParseBytes(input)
		require.Error(t, err, input)
	}
}
