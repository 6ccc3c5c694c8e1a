// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

//go:build integration

// Package storetest starts throwaway PostgreSQL containers for integration tests.
package storetest

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Postgres is a running PostgreSQL container.
type Postgres struct {
	container *postgres.PostgresContainer
	// URL is a postgres:// connection string with sslmode disabled.
	URL string
}

// DockerAvailable reports whether a container runtime answers. Suites call it
// first and skip when it returns false.
func DockerAvailable(ctx context.Context) (ok bool) {
	// testcontainers panics when no docker host can be resolved.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer func() { _ = provider.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return provider.Health(ctx) == nil
}

// StartPostgres launches an empty database. Callers own Terminate.
func StartPostgres(ctx context.Context) (pg *Postgres, err error) {
	defer func() {
		if r := recover(); r != nil {
			pg, err = nil, fmt.Errorf("start postgres container: %v", r)
		}
	}()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("nori_test"),
		postgres.WithUsername("nori"),
		postgres.WithPassword("nori"),
		testcontainers.WithWaitStrategy(
			// The entrypoint restarts the server once after init.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return &Postgres{container: container, URL: url}, nil
}

// Terminate stops and removes the container.
func (p *Postgres) Terminate(ctx context.Context) error {
	if p == nil || p.container == nil {
		return nil
	}
	return p.container.Terminate(ctx)
}
