//go:build tools
// +build tools

// Package tools declares tool dependencies for this module.
//
// mockgen is pinned here so that `go generate ./...` uses the version in go.mod.
package kuro

import (
	_ "go.uber.org/mock/mockgen"
)
