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

package scylla

import "fmt"

// IncompatibleImageError reports an image reference that is not a Scylla
// image. Run refuses it before any container is created.
type IncompatibleImageError struct {
	Image string
}

func (e *IncompatibleImageError) Error() string {
	return fmt.Sprintf("image %q is not compatible with %s", e.Image, defaultImageRepository)
}

// ScriptLoadError reports an init script that could not be found or read.
type ScriptLoadError struct {
	Path string
	Err  error
}

func (e *ScriptLoadError) Error() string {
	return fmt.Sprintf("could not load init script %s: %v", e.Path, e.Err)
}

func (e *ScriptLoadError) Unwrap() error {
	return e.Err
}

// ScriptExecutionError reports a structurally malformed init script, as
// opposed to a single statement that was not applied (see
// delegate.StatementError).
type ScriptExecutionError struct {
	Path string
	Err  error
}

func (e *ScriptExecutionError) Error() string {
	return fmt.Sprintf("error while executing init script %s: %v", e.Path, e.Err)
}

func (e *ScriptExecutionError) Unwrap() error {
	return e.Err
}
