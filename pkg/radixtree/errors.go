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

package radixtree

import (
	"fmt"
	"time"

	logger "github.com/intel/memtrie/pkg/log"
	"github.com/pkg/errors"
)

// ErrCorruptStructure is matched by all errors reporting an inconsistent tree.
var ErrCorruptStructure = errors.New("corrupt structure")

// NoSlot is the Slot of a CorruptStructureError not related to any slot.
const NoSlot = -1

// corruptLog reports inconsistencies without flooding the log when a
// mutating target is inspected repeatedly.
var corruptLog = logger.RateLimit(log, logger.Interval(5*time.Second))

// CorruptStructureError describes where a traversal found an inconsistency.
type CorruptStructureError struct {
	// Addr is the address of the offending node or root.
	Addr uint64
	// Slot is the offending slot in the node, or NoSlot.
	Slot int
	// Index is the index being looked up or iterated.
	Index uint64
	// Reason describes the inconsistency.
	Reason string
	// Err is the underlying memory read error, if any.
	Err error
}

func (e *CorruptStructureError) Error() string {
	where := fmt.Sprintf("tree traversal hit an inconsistent node at address 0x%x", e.Addr)
	if e.Slot != NoSlot {
		where += fmt.Sprintf(" slot %d", e.Slot)
	}
	where += fmt.Sprintf(" (index %d): %s", e.Index, e.Reason)
	if e.Err != nil {
		where += ": " + e.Err.Error()
	}
	return where + "; target process may have mutated the structure during inspection"
}

// Is matches ErrCorruptStructure.
func (e *CorruptStructureError) Is(target error) bool {
	return target == ErrCorruptStructure
}

// Unwrap returns the underlying read error.
func (e *CorruptStructureError) Unwrap() error {
	return e.Err
}

func corrupt(addr uint64, slot int, index uint64, format string, args ...interface{}) error {
	return report(&CorruptStructureError{
		Addr:   addr,
		Slot:   slot,
		Index:  index,
		Reason: fmt.Sprintf(format, args...),
	})
}

func readFailure(addr uint64, slot int, index uint64, err error) error {
	return report(&CorruptStructureError{
		Addr:   addr,
		Slot:   slot,
		Index:  index,
		Reason: "memory read failed",
		Err:    err,
	})
}

func report(e *CorruptStructureError) error {
	stats.corrupt()
	corruptLog.Warn("inconsistent node at 0x%x: %s", e.Addr, e.Reason)
	return e
}

// IsCorrupt checks if err reports an inconsistent tree.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptStructure)
}
