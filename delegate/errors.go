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

package delegate

import "fmt"

// ConnectionError reports that a driver session could not be established.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not obtain Scylla connection to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// StatementError reports that a single statement was not applied. Source and
// Line identify where the statement came from, so script failures point at
// the offending line.
type StatementError struct {
	Statement string
	Source    string
	Line      int
	Err       error
}

func (e *StatementError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("statement %q failed: %v", e.Statement, e.Err)
	}
	return fmt.Sprintf("statement %q failed (%s line %d): %v", e.Statement, e.Source, e.Line, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}
