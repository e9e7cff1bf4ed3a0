// Package registry provides the static catalog of node type contracts.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/weftflow/weft/pkg/protocol"
)

// ErrUnknownNodeType is returned when a lookup names an unregistered type.
var ErrUnknownNodeType = errors.New("unknown node type")

// Registry maps node type names to their capability contracts. Population
// happens once at process start; lookups after that are read-only, so no
// synchronization is needed at runtime.
type Registry struct {
	logger *slog.Logger
	nodes  map[string]protocol.Node
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		nodes:  make(map[string]protocol.Node),
	}
}

// Register adds a node handler to the catalog. Registering the same type
// twice replaces the earlier handler.
func (r *Registry) Register(node protocol.Node) {
	r.nodes[node.Type()] = node
	r.logger.Debug("Registered node type", "type", node.Type(), "category", node.Category())
}

// Get returns the handler for the given node type.
func (r *Registry) Get(nodeType string) (protocol.Node, error) {
	node, ok := r.nodes[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered: %w", nodeType, ErrUnknownNodeType)
	}

	return node, nil
}

// Types returns all registered type names, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.nodes))
	for nodeType := range r.nodes {
		types = append(types, nodeType)
	}

	sort.Strings(types)

	return types
}
