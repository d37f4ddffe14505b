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

// Package delegate executes CQL statements against a running Scylla instance.
// It is the only component in this module that opens, uses and closes a raw
// driver session.
package delegate

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/testcontainers/testcontainers-go"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

// CQLDelegate runs statements against a single Scylla node. The underlying
// session is created lazily on the first Execute call and reused until Close.
// A CQLDelegate is not safe for concurrent use; statement execution is
// expected to be sequential.
type CQLDelegate struct {
	host string
	port int

	logger         testcontainers.Logging
	connectTimeout time.Duration
	requestTimeout time.Duration

	session *gocql.Session
	closed  bool
}

// Option configures a CQLDelegate.
type Option func(*CQLDelegate)

// WithLogger overrides the logger used for progress and teardown messages.
// The default is the testcontainers package logger.
func WithLogger(l testcontainers.Logging) Option {
	return func(d *CQLDelegate) {
		d.logger = l
	}
}

// WithConnectTimeout bounds session creation. Useful for probes that must
// fail fast while the service is not listening yet.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(d *CQLDelegate) {
		d.connectTimeout = timeout
	}
}

// WithRequestTimeout bounds individual statement execution.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(d *CQLDelegate) {
		d.requestTimeout = timeout
	}
}

// New returns a delegate pointed at host:port. No connection is opened until
// the first Execute call.
func New(host string, port int, opts ...Option) *CQLDelegate {
	d := &CQLDelegate{
		host:           host,
		port:           port,
		logger:         testcontainers.Logger,
		connectTimeout: defaultConnectTimeout,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Addr returns the host:port this delegate connects to.
func (d *CQLDelegate) Addr() string {
	return net.JoinHostPort(d.host, strconv.Itoa(d.port))
}

// Execute runs a single statement. A driver failure is reported as a
// *StatementError carrying the statement text, the source label and the line
// number, unless continueOnError is set, or ignoreFailedDrops is set and the
// statement is a DROP. A session that cannot be created at all is reported as
// a *ConnectionError.
func (d *CQLDelegate) Execute(ctx context.Context, statement, source string, line int, continueOnError, ignoreFailedDrops bool) error {
	session, err := d.connection()
	if err != nil {
		return err
	}

	if err := session.Query(statement).WithContext(ctx).Exec(); err != nil {
		stmtErr := &StatementError{
			Statement: statement,
			Source:    source,
			Line:      line,
			Err:       err,
		}
		if continueOnError || (ignoreFailedDrops && isDropStatement(statement)) {
			d.logger.Printf("Continuing after failed statement: %v", stmtErr)
			return nil
		}
		return stmtErr
	}
	return nil
}

// connection returns the session, creating it on first use. A closed
// delegate never reopens.
func (d *CQLDelegate) connection() (*gocql.Session, error) {
	if d.closed {
		return nil, &ConnectionError{Addr: d.Addr(), Err: errClosed}
	}
	if d.session != nil {
		return d.session, nil
	}

	cluster := gocql.NewCluster(d.host)
	cluster.Port = d.port
	cluster.ConnectTimeout = d.connectTimeout
	cluster.Timeout = d.requestTimeout
	cluster.Consistency = gocql.Quorum
	// The node advertises its container-internal address, which is not
	// reachable through the mapped port.
	cluster.DisableInitialHostLookup = true

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, &ConnectionError{Addr: d.Addr(), Err: err}
	}
	d.session = session
	return d.session, nil
}

// Close releases the session. It is idempotent and never returns a non-nil
// error; teardown must not mask the failure that triggered it.
func (d *CQLDelegate) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.session != nil {
		d.session.Close()
		d.session = nil
	}
	return nil
}

func isDropStatement(statement string) bool {
	fields := strings.Fields(statement)
	return len(fields) > 0 && strings.EqualFold(fields[0], "DROP")
}

var errClosed = fmt.Errorf("delegate is closed")
