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

// Package defaults holds the module-wide defaults, overridable through the
// environment so CI setups can pin an image or stretch the startup budget
// without touching test code.
package defaults

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config carries the environment-overridable defaults.
type Config struct {
	// Image is the image reference used when the caller passes an empty one.
	Image string `env:"SCYLLA_TESTCONTAINERS_IMAGE,default=scylladb/scylla:4.1.8"`

	// StartupTimeout bounds the default container-state wait.
	StartupTimeout time.Duration `env:"SCYLLA_TESTCONTAINERS_STARTUP_TIMEOUT,default=1m"`
}

// Load reads the defaults from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads the defaults from the given lookuper. Tests use this with a
// map lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &cfg, lookuper); err != nil {
		return nil, fmt.Errorf("process defaults from env: %w", err)
	}
	return &cfg, nil
}
