// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"log/slog"

	"github.com/weftflow/weft/pkg/nodes"
	"github.com/weftflow/weft/pkg/registry"
)

// NewRegistry builds a registry with every built-in node type registered.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	nodes.RegisterBuiltins(reg)

	return reg
}
