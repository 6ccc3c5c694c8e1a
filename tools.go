// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

//go:build tools

// Package main pins tool and test dependencies to go.mod.
// See https://go.dev/wiki/Modules#how-can-i-track-tool-dependencies-for-a-module
package main

import (
	// Runs the store and auth integration suites:
	//   go run github.com/onsi/ginkgo/v2/ginkgo -tags integration ./...
	_ "github.com/onsi/ginkgo/v2/ginkgo"
	_ "github.com/onsi/gomega"
	_ "github.com/stretchr/testify/mock"
)
