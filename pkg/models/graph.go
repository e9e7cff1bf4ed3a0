// Package models defines the core domain models for graph-based workflow automation.
package models

// CategoryType represents the category of a node type.
type CategoryType string

const (
	CategoryTypeTrigger CategoryType = "trigger" // Entry nodes fed by external events (webhook, poll)
	CategoryTypeAction  CategoryType = "action"  // Regular action nodes (http, log, transform, etc.)
	CategoryTypeLogic   CategoryType = "logic"   // Branching nodes whose outcome label selects an edge
)

// Built-in trigger node types.
const (
	NodeTypeTriggerWebhook = "trigger:webhook"
	NodeTypeTriggerPoll    = "trigger:poll"
)

// GraphNode is a node instance inside a graph definition. Config is opaque to
// the engine until it is resolved and checked against the node type's schema.
type GraphNode struct {
	ID     string         `json:"id"   validate:"required"`
	Type   string         `json:"type" validate:"required"`
	Config map[string]any `json:"config"`
}

// GraphEdge is a directed edge between two declared nodes. An empty Condition
// marks the edge unconditional; otherwise it names an outcome label of the
// source node.
type GraphEdge struct {
	From      string `json:"from" validate:"required"`
	To        string `json:"to"   validate:"required"`
	Condition string `json:"condition,omitempty"`
}

// GraphDefinition is the immutable node/edge structure owned by a workflow.
// It is replaced wholesale on edit, never mutated in place.
type GraphDefinition struct {
	Nodes []*GraphNode `json:"nodes"`
	Edges []*GraphEdge `json:"edges"`
}

// IsEmpty reports whether the definition declares no nodes.
func (d *GraphDefinition) IsEmpty() bool {
	return d == nil || len(d.Nodes) == 0
}

// NodeByID returns the declared node with the given id, or nil.
func (d *GraphDefinition) NodeByID(id string) *GraphNode {
	for _, node := range d.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// OutgoingEdges returns the edges whose From references the given node id,
// in declaration order.
func (d *GraphDefinition) OutgoingEdges(nodeID string) []*GraphEdge {
	edges := make([]*GraphEdge, 0)

	for _, edge := range d.Edges {
		if edge.From == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// IncomingCounts returns the number of incoming edges per declared node id.
// Every declared node appears in the result, entry candidates with count zero.
func (d *GraphDefinition) IncomingCounts() map[string]int {
	counts := make(map[string]int, len(d.Nodes))
	for _, node := range d.Nodes {
		counts[node.ID] = 0
	}

	for _, edge := range d.Edges {
		if _, declared := counts[edge.To]; declared {
			counts[edge.To]++
		}
	}

	return counts
}

// EntryNode returns the first declared node without incoming edges. The
// validator guarantees exactly one such node for non-empty definitions; the
// boolean guards against definitions that bypassed validation.
func (d *GraphDefinition) EntryNode() (*GraphNode, bool) {
	counts := d.IncomingCounts()

	for _, node := range d.Nodes {
		if counts[node.ID] == 0 {
			return node, true
		}
	}

	return nil, false
}

// NodesByType returns the declared nodes of the given type, in declaration
// order. Used by the subscription manager to find trigger entry points.
func (d *GraphDefinition) NodesByType(nodeType string) []*GraphNode {
	nodes := make([]*GraphNode, 0)

	for _, node := range d.Nodes {
		if node.Type == nodeType {
			nodes = append(nodes, node)
		}
	}

	return nodes
}
