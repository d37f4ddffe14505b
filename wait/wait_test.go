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

package wait

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/go-connections/nat"
	tcexec "github.com/testcontainers/testcontainers-go/exec"

	"github.com/joschi/testcontainers-scylla/internal/testutil"
)

// stubTarget satisfies wait.StrategyTarget with a fixed host and port.
type stubTarget struct {
	hostErr error
	portErr error
}

func (s *stubTarget) Host(context.Context) (string, error) {
	return "localhost", s.hostErr
}

func (s *stubTarget) MappedPort(context.Context, nat.Port) (nat.Port, error) {
	return nat.Port("32768/tcp"), s.portErr
}

func (s *stubTarget) Inspect(context.Context) (*types.ContainerJSON, error) {
	return nil, nil
}

func (s *stubTarget) Ports(context.Context) (nat.PortMap, error) {
	return nil, nil
}

func (s *stubTarget) Logs(context.Context) (io.ReadCloser, error) {
	return nil, nil
}

func (s *stubTarget) Exec(context.Context, []string, ...tcexec.ProcessOption) (int, io.Reader, error) {
	return 0, nil, nil
}

func (s *stubTarget) State(context.Context) (*types.ContainerState, error) {
	return nil, nil
}

func (s *stubTarget) CopyFileFromContainer(context.Context, string) (io.ReadCloser, error) {
	return nil, nil
}

// proberStats counts connection opens, statement executions and closes
// across every prober the strategy created.
type proberStats struct {
	opens  int
	execs  int
	closes int
}

type fakeProber struct {
	stats     *proberStats
	failFirst int // number of leading attempts that fail
}

func (p *fakeProber) Execute(_ context.Context, statement, _ string, _ int, _, _ bool) error {
	p.stats.execs++
	if statement != "SELECT release_version FROM system.local" {
		return fmt.Errorf("unexpected check query %q", statement)
	}
	if p.stats.execs <= p.failFirst {
		return fmt.Errorf("node not ready yet")
	}
	return nil
}

func (p *fakeProber) Close() error {
	p.stats.closes++
	return nil
}

func withFakeProber(ws *QueryStrategy, stats *proberStats, failFirst int) *QueryStrategy {
	ws.newProber = func(string, int) prober {
		stats.opens++
		return &fakeProber{stats: stats, failFirst: failFirst}
	}
	return ws
}

func TestWaitUntilReady_FirstAttemptSucceeds(t *testing.T) {
	t.Parallel()

	var stats proberStats
	ws := withFakeProber(ForQuery(), &stats, 0)

	if err := ws.WaitUntilReady(context.Background(), &stubTarget{}); err != nil {
		t.Fatalf("WaitUntilReady() returned unexpected error: %v", err)
	}
	// Exactly one connection open/close pair for the single attempt.
	if stats.opens != 1 || stats.closes != 1 {
		t.Errorf("got %d opens and %d closes, want 1 and 1", stats.opens, stats.closes)
	}
}

func TestWaitUntilReady_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	var stats proberStats
	ws := withFakeProber(ForQuery().WithPollInterval(time.Millisecond), &stats, 2)

	if err := ws.WaitUntilReady(context.Background(), &stubTarget{}); err != nil {
		t.Fatalf("WaitUntilReady() returned unexpected error: %v", err)
	}
	if stats.opens != 3 || stats.closes != 3 {
		t.Errorf("got %d opens and %d closes, want 3 and 3", stats.opens, stats.closes)
	}
}

func TestWaitUntilReady_Timeout(t *testing.T) {
	t.Parallel()

	const timeout = 300 * time.Millisecond
	var stats proberStats
	ws := withFakeProber(
		ForQuery().WithStartupTimeout(timeout).WithPollInterval(20*time.Millisecond),
		&stats, int(^uint(0)>>1), // never succeeds
	)

	start := time.Now()
	err := ws.WaitUntilReady(context.Background(), &stubTarget{})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrStartupTimeout) {
		t.Fatalf("got error %v, want ErrStartupTimeout", err)
	}
	if diff := testutil.DiffErrString(err, "timed out waiting for Scylla to be accessible for query execution"); diff != "" {
		t.Error(diff)
	}
	if elapsed < timeout {
		t.Errorf("gave up after %v, want at least %v", elapsed, timeout)
	}
	if stats.opens != stats.closes {
		t.Errorf("got %d opens and %d closes, want every open matched by a close", stats.opens, stats.closes)
	}
}

func TestWaitUntilReady_ZeroTimeout(t *testing.T) {
	t.Parallel()

	var stats proberStats
	ws := withFakeProber(ForQuery().WithStartupTimeout(0), &stats, 0)

	err := ws.WaitUntilReady(context.Background(), &stubTarget{})
	if !errors.Is(err, ErrStartupTimeout) {
		t.Fatalf("got error %v, want ErrStartupTimeout", err)
	}
	if stats.opens != 0 {
		t.Errorf("got %d opens, want 0 before an expired deadline", stats.opens)
	}
}

func TestWaitUntilReady_HostResolutionErrorIsRetried(t *testing.T) {
	t.Parallel()

	var stats proberStats
	ws := withFakeProber(
		ForQuery().WithStartupTimeout(100*time.Millisecond).WithPollInterval(10*time.Millisecond),
		&stats, 0,
	)

	err := ws.WaitUntilReady(context.Background(), &stubTarget{hostErr: fmt.Errorf("no docker host")})
	if !errors.Is(err, ErrStartupTimeout) {
		t.Fatalf("got error %v, want ErrStartupTimeout", err)
	}
	if diff := testutil.DiffErrString(err, "resolve host"); diff != "" {
		t.Error(diff)
	}
	if stats.opens != 0 {
		t.Errorf("got %d opens, want 0 when the host never resolves", stats.opens)
	}
}

func TestQueryStrategy_Settings(t *testing.T) {
	t.Parallel()

	ws := ForQuery()
	if ws.Timeout() != nil {
		t.Errorf("got a default timeout override %v, want nil", *ws.Timeout())
	}

	ws = ws.WithStartupTimeout(42 * time.Second).WithPollInterval(time.Second)
	if got := ws.Timeout(); got == nil || *got != 42*time.Second {
		t.Errorf("got timeout %v, want 42s", got)
	}
	if ws.pollInterval != time.Second {
		t.Errorf("got poll interval %v, want 1s", ws.pollInterval)
	}
}
