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

// Package testutils has helpers for checking results in tests.
package testutils

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
)

// VerifyDeepEqual checks that two values are equal, or else it fails the test.
func VerifyDeepEqual(t testing.TB, valueName string, expectedValue, seenValue interface{}) bool {
	t.Helper()
	if diff := cmp.Diff(expectedValue, seenValue); diff != "" {
		t.Errorf("unexpected %s (-expected +seen):\n%s", valueName, diff)
		return false
	}
	return true
}

// VerifyError checks that err collects expectedCount errors, each wrapping
// target if it is not nil, and mentions every expected substring. An
// expectedCount of zero expects no error.
func VerifyError(t testing.TB, err error, expectedCount int, target error, expectedSubstrings ...string) bool {
	t.Helper()
	if expectedCount == 0 {
		if err != nil {
			t.Errorf("expected no errors, but got %v", err)
			return false
		}
		return true
	}
	if err == nil {
		t.Errorf("error expected, got nil")
		return false
	}

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Errorf("expected %d errors, but got %#v instead of multierror", expectedCount, err)
		return false
	}
	if len(merr.Errors) != expectedCount {
		t.Errorf("expected %d errors, but got %d: %v", expectedCount, len(merr.Errors), merr)
		return false
	}

	ok := true
	if target != nil {
		for _, e := range merr.Errors {
			if !errors.Is(e, target) {
				t.Errorf("expected error %q to wrap %q", e, target)
				ok = false
			}
		}
	}
	for _, substring := range expectedSubstrings {
		if !strings.Contains(err.Error(), substring) {
			t.Errorf("expected error with substring %q, got %q", substring, err)
			ok = false
		}
	}
	return ok
}
