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
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// procRoot is the mount point of the proc filesystem.
var procRoot = "/proc"

// ProcMaps returns the mapped address ranges of process pid.
func ProcMaps(pid int) (*AddrRanges, error) {
	mapsPath := procRoot + "/" + strconv.Itoa(pid) + "/maps"
	mapsBytes, err := os.ReadFile(mapsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read maps of process %d", pid)
	}
	return NewAddrRanges(pid, parseMaps(string(mapsBytes))...), nil
}

func parseMaps(maps string) []AddrRange {
	ranges := []AddrRange{}
	for _, mapLine := range strings.Split(maps, "\n") {
		// Parse start and end addresses. Example of /proc/pid/maps lines:
		// 55d74cf13000-55d74cf14000 rw-p 00003000 fe:03 1194719   /usr/bin/python3.8
		// 55d74e76d000-55d74e968000 rw-p 00000000 00:00 0         [heap]
		dashIndex := strings.Index(mapLine, "-")
		spaceIndex := strings.Index(mapLine, " ")
		if dashIndex <= 0 || spaceIndex <= dashIndex {
			continue
		}
		startAddr, err := strconv.ParseUint(mapLine[0:dashIndex], 16, 64)
		if err != nil {
			continue
		}
		endAddr, err := strconv.ParseUint(mapLine[dashIndex+1:spaceIndex], 16, 64)
		if err != nil || endAddr < startAddr {
			continue
		}
		ranges = append(ranges, AddrRange{addr: startAddr, length: endAddr - startAddr})
	}
	return ranges
}
