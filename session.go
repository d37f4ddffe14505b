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
	"context"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/testcontainers/testcontainers-go"
)

// ClusterConfig returns a gocql cluster configuration pre-pointed at the
// mapped CQL port. Callers may tweak it (keyspace, consistency, timeouts)
// before creating sessions.
func (c *Container) ClusterConfig(ctx context.Context) (*gocql.ClusterConfig, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve host: %w", err)
	}
	port, err := c.MappedPort(ctx, CQLPort)
	if err != nil {
		return nil, fmt.Errorf("resolve mapped port: %w", err)
	}

	cluster := gocql.NewCluster(host)
	cluster.Port = port.Int()
	cluster.Consistency = gocql.Quorum
	// The node advertises its container-internal address; peer discovery
	// through the mapped port would dial unreachable IPs.
	cluster.DisableInitialHostLookup = true

	if c.settings.metricsReporting {
		obs := &sessionObserver{logger: testcontainers.Logger}
		cluster.QueryObserver = obs
		cluster.ConnectObserver = obs
	}
	return cluster, nil
}

// NewSession opens a session against the container. The caller owns the
// session and must close it.
func (c *Container) NewSession(ctx context.Context) (*gocql.Session, error) {
	cluster, err := c.ClusterConfig(ctx)
	if err != nil {
		return nil, err
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// sessionObserver reports driver-side query and connect timings through the
// testcontainers logger. Enabled with WithMetricsReporting.
type sessionObserver struct {
	logger testcontainers.Logging
}

func (o *sessionObserver) ObserveQuery(_ context.Context, q gocql.ObservedQuery) {
	if q.Err != nil {
		o.logger.Printf("cql query %q failed after %s: %v", q.Statement, q.End.Sub(q.Start), q.Err)
		return
	}
	o.logger.Printf("cql query %q took %s", q.Statement, q.End.Sub(q.Start))
}

func (o *sessionObserver) ObserveConnect(c gocql.ObservedConnect) {
	if c.Err != nil {
		o.logger.Printf("cql connect to %s failed after %s: %v", c.Host.ConnectAddress(), c.End.Sub(c.Start), c.Err)
		return
	}
	o.logger.Printf("cql connect to %s took %s", c.Host.ConnectAddress(), c.End.Sub(c.Start))
}
