// Copyright 2024 The Authors (see AUTHORS file)
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

// Package testutil contains common util functions to facilitate tests.
package testutil

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
)

// IsIntegration checks env var TEST_INTEGRATION and considers that we're in
// an integration test if it's set to true. Integration tests need a working
// Docker daemon and pull the Scylla image.
func IsIntegration(tb testing.TB) bool {
	tb.Helper()
	integVal := os.Getenv("TEST_INTEGRATION")
	if integVal == "" {
		return false
	}
	isInteg, err := strconv.ParseBool(integVal)
	if err != nil {
		tb.Fatalf("failed to parse TEST_INTEGRATION: %v", err)
	}
	return isInteg
}

// SkipIfNotIntegration skips the test if [IsIntegration] returns false.
func SkipIfNotIntegration(tb testing.TB) {
	tb.Helper()
	if !IsIntegration(tb) {
		tb.Skip("Not integration test, skipping")
	}
}

// DiffErrString returns an empty string if the 'got' error message contains
// the 'want' string, and a description of the mismatch otherwise.
func DiffErrString(got error, want string) string {
	if want == "" {
		if got == nil {
			return ""
		}
		return fmt.Sprintf("got error %q but want <nil>", got.Error())
	}
	if got == nil {
		return fmt.Sprintf("got error <nil> but want an error containing %q", want)
	}
	if msg := got.Error(); !strings.Contains(msg, want) {
		return fmt.Sprintf("got error %q but want an error containing %q", msg, want)
	}
	return ""
}
