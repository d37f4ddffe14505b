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

package defaults

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"
)

func TestLoadWith(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		env  map[string]string
		want *Config
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: &Config{
				Image:          "scylladb/scylla:4.1.8",
				StartupTimeout: time.Minute,
			},
		},
		{
			name: "image_override",
			env: map[string]string{
				"SCYLLA_TESTCONTAINERS_IMAGE": "scylladb/scylla:5.4",
			},
			want: &Config{
				Image:          "scylladb/scylla:5.4",
				StartupTimeout: time.Minute,
			},
		},
		{
			name: "timeout_override",
			env: map[string]string{
				"SCYLLA_TESTCONTAINERS_STARTUP_TIMEOUT": "3m",
			},
			want: &Config{
				Image:          "scylladb/scylla:4.1.8",
				StartupTimeout: 3 * time.Minute,
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := LoadWith(context.Background(), envconfig.MapLookuper(tc.env))
			if err != nil {
				t.Fatalf("LoadWith() returned unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("config diff (-want,+got):\n%s", diff)
			}
		})
	}
}

func TestLoadWith_BadTimeout(t *testing.T) {
	t.Parallel()

	env := map[string]string{"SCYLLA_TESTCONTAINERS_STARTUP_TIMEOUT": "not-a-duration"}
	if _, err := LoadWith(context.Background(), envconfig.MapLookuper(env)); err == nil {
		t.Fatal("got nil error, want a parse failure")
	}
}
