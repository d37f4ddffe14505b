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

// Package wait provides a readiness strategy that considers a Scylla
// container ready only once it answers a CQL query. A container can report
// "started" while the node is still bootstrapping and not yet accepting
// client traffic; asking for the release version over the wire is the only
// signal that the CQL port is actually serving.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/sethvargo/go-retry"
	tcwait "github.com/testcontainers/testcontainers-go/wait"

	"github.com/joschi/testcontainers-scylla/delegate"
)

const (
	selectVersionQuery = "SELECT release_version FROM system.local"

	defaultStartupTimeout = time.Minute
	defaultPollInterval   = 100 * time.Millisecond

	cqlPort = nat.Port("9042/tcp")
)

// ErrStartupTimeout is returned when the node never became accessible for
// query execution within the startup timeout.
var ErrStartupTimeout = errors.New("timed out waiting for Scylla to be accessible for query execution")

// prober is the slice of the delegate the strategy needs: execute one
// statement, then release the connection.
type prober interface {
	Execute(ctx context.Context, statement, source string, line int, continueOnError, ignoreFailedDrops bool) error
	Close() error
}

// QueryStrategy polls the node with a version query until it succeeds or the
// startup timeout elapses. It implements the testcontainers-go wait.Strategy
// interface.
type QueryStrategy struct {
	timeout      *time.Duration
	pollInterval time.Duration

	newProber func(host string, port int) prober
}

var (
	_ tcwait.Strategy        = (*QueryStrategy)(nil)
	_ tcwait.StrategyTimeout = (*QueryStrategy)(nil)
)

// ForQuery returns a strategy that waits until the node answers
// "SELECT release_version FROM system.local".
func ForQuery() *QueryStrategy {
	return &QueryStrategy{
		pollInterval: defaultPollInterval,
		newProber: func(host string, port int) prober {
			// A short connect timeout keeps one attempt from eating the
			// whole startup budget while the port is not listening yet.
			return delegate.New(host, port, delegate.WithConnectTimeout(5*time.Second))
		},
	}
}

// WithStartupTimeout overrides the default one minute startup timeout.
func (ws *QueryStrategy) WithStartupTimeout(timeout time.Duration) *QueryStrategy {
	ws.timeout = &timeout
	return ws
}

// WithPollInterval caps the attempt rate independent of query latency.
func (ws *QueryStrategy) WithPollInterval(interval time.Duration) *QueryStrategy {
	ws.pollInterval = interval
	return ws
}

// Timeout implements wait.StrategyTimeout.
func (ws *QueryStrategy) Timeout() *time.Duration {
	return ws.timeout
}

// WaitUntilReady blocks until one query attempt succeeds. Each attempt opens
// a fresh connection and closes it before the outcome is evaluated, so a
// half-open connection from a booting node cannot poison later attempts.
func (ws *QueryStrategy) WaitUntilReady(ctx context.Context, target tcwait.StrategyTarget) error {
	timeout := defaultStartupTimeout
	if ws.timeout != nil {
		timeout = *ws.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	err := retry.Do(ctx, retry.NewConstant(ws.pollInterval), func(ctx context.Context) error {
		if err := ws.probe(ctx, target); err != nil {
			lastErr = err
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			if lastErr != nil {
				return fmt.Errorf("%w (last attempt: %v)", ErrStartupTimeout, lastErr)
			}
			return ErrStartupTimeout
		}
		return err
	}
	return nil
}

func (ws *QueryStrategy) probe(ctx context.Context, target tcwait.StrategyTarget) error {
	host, err := target.Host(ctx)
	if err != nil {
		return fmt.Errorf("resolve host: %w", err)
	}
	port, err := target.MappedPort(ctx, cqlPort)
	if err != nil {
		return fmt.Errorf("resolve mapped port: %w", err)
	}

	p := ws.newProber(host, port.Int())
	defer p.Close()
	return p.Execute(ctx, selectVersionQuery, "", 1, false, false)
}
