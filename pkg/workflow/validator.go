package workflow

import (
	"fmt"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/protocol"
	"github.com/weftflow/weft/pkg/registry"
)

// ValidateDefinition checks a graph definition structurally and semantically
// against the registry. All violations are collected before returning; a
// non-nil result is always a *ValidationError. The checks run on definition
// save and, mandatorily, on the transition to active.
func ValidateDefinition(def *models.GraphDefinition, reg *registry.Registry) error {
	if def.IsEmpty() {
		return nil
	}

	violations := make([]string, 0)

	violations = append(violations, checkUniqueNodeIDs(def)...)
	violations = append(violations, checkEdgeReferences(def)...)
	violations = append(violations, checkSingleEntry(def)...)
	violations = append(violations, checkNodeTypes(def, reg)...)
	violations = append(violations, checkBranching(def, reg)...)
	violations = append(violations, checkAcyclic(def)...)

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}

	return nil
}

func checkUniqueNodeIDs(def *models.GraphDefinition) []string {
	violations := make([]string, 0)
	seen := make(map[string]bool, len(def.Nodes))

	for _, node := range def.Nodes {
		if seen[node.ID] {
			violations = append(violations, fmt.Sprintf("duplicate node id %q", node.ID))
		}

		seen[node.ID] = true
	}

	return violations
}

func checkEdgeReferences(def *models.GraphDefinition) []string {
	violations := make([]string, 0)

	for i, edge := range def.Edges {
		if def.NodeByID(edge.From) == nil {
			violations = append(violations, fmt.Sprintf("edge %d references undeclared node %q in 'from'", i, edge.From))
		}

		if def.NodeByID(edge.To) == nil {
			violations = append(violations, fmt.Sprintf("edge %d references undeclared node %q in 'to'", i, edge.To))
		}
	}

	return violations
}

func checkSingleEntry(def *models.GraphDefinition) []string {
	counts := def.IncomingCounts()
	entries := make([]string, 0, 1)

	for _, node := range def.Nodes {
		if counts[node.ID] == 0 {
			entries = append(entries, node.ID)
		}
	}

	if len(entries) == 0 {
		return []string{"no entry node: every node has incoming edges"}
	}

	if len(entries) > 1 {
		return []string{fmt.Sprintf("multiple entry nodes: %v", entries)}
	}

	return nil
}

func checkNodeTypes(def *models.GraphDefinition, reg *registry.Registry) []string {
	violations := make([]string, 0)

	for _, node := range def.Nodes {
		if _, err := reg.Get(node.Type); err != nil {
			violations = append(violations, fmt.Sprintf("node %q has unknown type %q", node.ID, node.Type))
		}
	}

	return violations
}

// checkBranching enforces the edge rules per node category: logic nodes route
// by declared outcome labels, everything else follows at most one
// unconditional edge.
func checkBranching(def *models.GraphDefinition, reg *registry.Registry) []string {
	violations := make([]string, 0)

	for _, node := range def.Nodes {
		handler, err := reg.Get(node.Type)
		if err != nil {
			continue // Already reported by checkNodeTypes.
		}

		outgoing := def.OutgoingEdges(node.ID)

		logicNode, isLogic := handler.(protocol.LogicNode)
		if isLogic {
			declared := make(map[string]bool)
			for _, outcome := range logicNode.Outcomes() {
				declared[outcome] = true
			}

			for _, edge := range outgoing {
				if edge.Condition == "" {
					violations = append(violations,
						fmt.Sprintf("logic node %q has an unconditional outgoing edge to %q", node.ID, edge.To))

					continue
				}

				if !declared[edge.Condition] {
					violations = append(violations,
						fmt.Sprintf("logic node %q edge condition %q is not a declared outcome of type %q",
							node.ID, edge.Condition, node.Type))
				}
			}

			continue
		}

		if len(outgoing) > 1 {
			violations = append(violations,
				fmt.Sprintf("node %q of category %q has %d outgoing edges, branching requires a logic node",
					node.ID, handler.Category(), len(outgoing)))
		}

		for _, edge := range outgoing {
			if edge.Condition != "" {
				violations = append(violations,
					fmt.Sprintf("node %q is not a logic node but edge to %q carries condition %q",
						node.ID, edge.To, edge.Condition))
			}
		}
	}

	return violations
}

// checkAcyclic runs a full-graph three-color DFS over node ids, independent
// of any particular input.
func checkAcyclic(def *models.GraphDefinition) []string {
	const (
		white = iota // unvisited
		gray         // on the current DFS stack
		black        // fully explored
	)

	colors := make(map[string]int, len(def.Nodes))

	var visit func(id string) bool

	visit = func(id string) bool {
		colors[id] = gray

		for _, edge := range def.OutgoingEdges(id) {
			if def.NodeByID(edge.To) == nil {
				continue // Dangling edges are reported by checkEdgeReferences.
			}

			switch colors[edge.To] {
			case gray:
				return true
			case white:
				if visit(edge.To) {
					return true
				}
			}
		}

		colors[id] = black

		return false
	}

	for _, node := range def.Nodes {
		if colors[node.ID] == white && visit(node.ID) {
			return []string{fmt.Sprintf("definition contains a cycle reachable from node %q", node.ID)}
		}
	}

	return nil
}
