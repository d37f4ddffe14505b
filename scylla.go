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

// Package scylla provides an ephemeral ScyllaDB container for integration
// testing, built on testcontainers-go. It starts the node, waits until it is
// ready, optionally replaces the stock configuration and seeds initial state
// from a CQL script, and hands connection parameters to test code.
package scylla

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	tcwait "github.com/testcontainers/testcontainers-go/wait"

	"github.com/joschi/testcontainers-scylla/cqlscript"
	"github.com/joschi/testcontainers-scylla/delegate"
	"github.com/joschi/testcontainers-scylla/internal/defaults"
)

// Ports exposed by the container.
const (
	// CQLPort is the native protocol port test code connects to.
	CQLPort = nat.Port("9042/tcp")
	// ThriftPort is the legacy thrift RPC port.
	ThriftPort = nat.Port("9160/tcp")
	// JMXPort is the management port of the in-container JMX agent.
	JMXPort = nat.Port("7199/tcp")
	// APIPort is the Scylla REST API port.
	APIPort = nat.Port("10000/tcp")
)

const (
	defaultImageRepository = "scylladb/scylla"
	containerConfigPath    = "/etc/scylla"

	// By default Scylla runs with AllowAllAuthenticator, so these
	// credentials are inert. They become meaningful once the caller
	// switches the node to PasswordAuthenticator through a configuration
	// override.
	defaultUsername = "scylla"
	defaultPassword = "scylla"

	// Transient startup failures of the node process are absorbed by the
	// container runtime restarting it a few times.
	startupAttempts = 3
)

// Container represents a running Scylla container.
type Container struct {
	testcontainers.Container
	settings   options
	terminated bool
}

// Run starts a Scylla container from the given image reference and blocks
// until the configured wait strategy reports it ready. An empty img selects
// the default image (overridable via SCYLLA_TESTCONTAINERS_IMAGE).
//
// The default wait strategy only checks that the CQL port is accepting TCP
// connections. Callers that need the node to actually serve queries before
// proceeding should pass
// testcontainers.WithWaitStrategy(wait.ForQuery()) using this module's wait
// package.
//
// On error the returned container may be non-nil; callers must terminate it.
func Run(ctx context.Context, img string, opts ...testcontainers.ContainerCustomizer) (*Container, error) {
	def, err := defaults.Load(ctx)
	if err != nil {
		return nil, err
	}
	if img == "" {
		img = def.Image
	}

	req := testcontainers.ContainerRequest{
		Image: img,
		ExposedPorts: []string{
			string(CQLPort), string(ThriftPort), string(JMXPort), string(APIPort),
		},
		Cmd:        []string{"--disable-version-check", "--api-address", "0.0.0.0"},
		WaitingFor: tcwait.ForListeningPort(CQLPort).WithStartupTimeout(def.StartupTimeout),
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.RestartPolicy = container.RestartPolicy{
				Name:              container.RestartPolicyOnFailure,
				MaximumRetryCount: startupAttempts,
			}
		},
	}
	genericContainerReq := testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	}

	var settings options
	for _, opt := range opts {
		if apply, ok := opt.(Option); ok {
			apply(&settings)
		}
		if err := opt.Customize(&genericContainerReq); err != nil {
			return nil, fmt.Errorf("customize request: %w", err)
		}
	}

	if err := validateImage(genericContainerReq.Image); err != nil {
		return nil, err
	}

	// The init script runs after the wait strategy reported readiness, and
	// at most once per container lifecycle.
	if settings.initScriptPath != "" {
		initScriptPath := settings.initScriptPath
		genericContainerReq.LifecycleHooks = append(genericContainerReq.LifecycleHooks,
			testcontainers.ContainerLifecycleHooks{
				PostReadies: []testcontainers.ContainerHook{
					func(ctx context.Context, c testcontainers.Container) error {
						return runInitScript(ctx, c, initScriptPath)
					},
				},
			})
	}

	ctr, err := testcontainers.GenericContainer(ctx, genericContainerReq)
	var c *Container
	if ctr != nil {
		c = &Container{Container: ctr, settings: settings}
	}
	if err != nil {
		return c, fmt.Errorf("generic container: %w", err)
	}
	return c, nil
}

// RunContainer starts a Scylla container using the default image.
//
// Deprecated: use [Run] instead.
func RunContainer(ctx context.Context, opts ...testcontainers.ContainerCustomizer) (*Container, error) {
	return Run(ctx, "", opts...)
}

// validateImage rejects image references outside the Scylla family. The
// repository path must mention scylla; registry, namespace and tag are free.
func validateImage(img string) error {
	repo := img
	if i := strings.LastIndex(repo, "@"); i >= 0 {
		repo = repo[:i]
	}
	// Strip the tag, careful not to eat a registry port.
	if i := strings.LastIndex(repo, ":"); i > strings.LastIndex(repo, "/") {
		repo = repo[:i]
	}
	if !strings.Contains(strings.ToLower(repo), "scylla") {
		return &IncompatibleImageError{Image: img}
	}
	return nil
}

// runInitScript loads the script from disk and applies every statement in
// file order through a dedicated delegate. The first failing statement aborts
// the remainder.
func runInitScript(ctx context.Context, c testcontainers.Container, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		testcontainers.Logger.Printf("Could not load init script %s: %v", path, err)
		return &ScriptLoadError{Path: path, Err: err}
	}

	host, err := c.Host(ctx)
	if err != nil {
		return fmt.Errorf("resolve host: %w", err)
	}
	port, err := c.MappedPort(ctx, CQLPort)
	if err != nil {
		return fmt.Errorf("resolve mapped port: %w", err)
	}

	d := delegate.New(host, port.Int())
	defer d.Close()

	if err := cqlscript.Run(ctx, d, path, bytes.NewReader(content), false, false); err != nil {
		var syntaxErr *cqlscript.SyntaxError
		if errors.As(err, &syntaxErr) {
			return &ScriptExecutionError{Path: path, Err: err}
		}
		// Statement failures keep their own identity (delegate.StatementError)
		// so callers can see which line did not apply.
		return fmt.Errorf("apply init script %s: %w", path, err)
	}
	return nil
}

// Terminate removes the container and its storage. It is idempotent: calling
// it again after a successful termination is a no-op.
func (c *Container) Terminate(ctx context.Context) error {
	if c.terminated {
		return nil
	}
	if err := c.Container.Terminate(ctx); err != nil {
		return fmt.Errorf("terminate container: %w", err)
	}
	c.terminated = true
	return nil
}

// Username returns the default username. Inert unless the node was switched
// to PasswordAuthenticator via a configuration override.
func (c *Container) Username() string {
	return defaultUsername
}

// Password returns the default password. See [Container.Username].
func (c *Container) Password() string {
	return defaultPassword
}

// ConnectionHost returns a host:port string pointing at the mapped CQL port.
func (c *Container) ConnectionHost(ctx context.Context) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve host: %w", err)
	}
	port, err := c.MappedPort(ctx, CQLPort)
	if err != nil {
		return "", fmt.Errorf("resolve mapped port: %w", err)
	}
	return net.JoinHostPort(host, port.Port()), nil
}
