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

import (
	"github.com/testcontainers/testcontainers-go"
)

// This file implements the "functional options" pattern.

type options struct {
	initScriptPath   string
	metricsReporting bool
}

// Option is an option specific to Scylla containers. It satisfies
// testcontainers.ContainerCustomizer so it can be mixed freely with the
// generic framework options.
type Option func(*options)

// Customize implements testcontainers.ContainerCustomizer.
func (o Option) Customize(*testcontainers.GenericContainerRequest) error {
	// Scylla options mutate the settings, not the request.
	return nil
}

// WithConfigurationOverride copies the contents of a local directory over
// /etc/scylla in the container, replacing the stock configuration wholesale.
// There is no merge: the directory must hold a complete, valid configuration
// set including scylla.yaml, or the node will never become ready.
func WithConfigurationOverride(configDir string) testcontainers.CustomizeRequestOption {
	return func(req *testcontainers.GenericContainerRequest) error {
		req.Files = append(req.Files, testcontainers.ContainerFile{
			HostFilePath:      configDir,
			ContainerFilePath: containerConfigPath,
			FileMode:          0o755,
		})
		return nil
	}
}

// WithInitScript registers a CQL script to run once, after the container is
// ready. Statements execute in file order; the first failure aborts the
// remainder and fails startup. At most one script runs per container
// lifecycle.
func WithInitScript(path string) Option {
	return func(o *options) {
		o.initScriptPath = path
	}
}

// WithMetricsReporting toggles driver-side instrumentation on sessions
// produced by [Container.ClusterConfig] and [Container.NewSession]: query and
// connect timings are reported through the testcontainers logger. Off by
// default.
func WithMetricsReporting(enabled bool) Option {
	return func(o *options) {
		o.metricsReporting = enabled
	}
}
