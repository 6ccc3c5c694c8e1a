// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

//go:build integration

package storetest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noriauth/nori/internal/store/storetest"
)

func TestDockerAvailable_UnreachableHost(t *testing.T) {
	t.Setenv("DOCKER_HOST", "unix:///nonexistent/docker.sock")

	assert.NotPanics(t, func() {
		assert.False(t, storetest.DockerAvailable(context.Background()))
	})
}

func TestStartPostgres_UnreachableHost(t *testing.T) {
	t.Setenv("DOCKER_HOST", "unix:///nonexistent/docker.sock")

	var (
		pg  *storetest.Postgres
		err error
	)
	assert.NotPanics(t, func() {
		pg, err = storetest.StartPostgres(context.Background())
	})
	assert.Error(t, err)
	assert.Nil(t, pg)
}
