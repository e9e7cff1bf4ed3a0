package web

import "github.com/weftflow/weft/pkg/models"

// CreateWorkflowRequest creates a draft workflow, optionally with an initial
// definition.
type CreateWorkflowRequest struct {
	Name        string                  `json:"name"        validate:"required,min=3"`
	Description string                  `json:"description"`
	Definition  *models.GraphDefinition `json:"definition"`
	Variables   map[string]any          `json:"variables"`
	Credentials map[string]string       `json:"credentials"`
	Metadata    map[string]any          `json:"metadata"`
	Owner       string                  `json:"owner"`
}

// UpdateWorkflowRequest applies a partial update. Nil fields are untouched; a
// non-nil definition replaces the graph wholesale.
type UpdateWorkflowRequest struct {
	Name        *string                 `json:"name"        validate:"omitempty,min=3"`
	Description *string                 `json:"description"`
	Definition  *models.GraphDefinition `json:"definition"`
	Variables   map[string]any          `json:"variables"`
	Credentials map[string]string       `json:"credentials"`
	Metadata    map[string]any          `json:"metadata"`
}

// ExecuteWorkflowRequest starts one execution with the given trigger payload.
type ExecuteWorkflowRequest struct {
	TriggerData map[string]any `json:"trigger_data"`
}

// CancelExecutionRequest asks a running execution to stop at the next step
// boundary.
type CancelExecutionRequest struct {
	RequestedBy string `json:"requested_by" validate:"required"`
	Reason      string `json:"reason"`
}

// ExecutionResponse is the delivery acknowledgment for webhook and direct
// execution requests.
type ExecutionResponse struct {
	ExecutionID string                 `json:"execution_id"`
	IsDuplicate bool                   `json:"is_duplicate,omitempty"`
	Status      models.ExecutionStatus `json:"status,omitempty"`
}
