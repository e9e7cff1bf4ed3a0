package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft  WorkflowStatus = "draft"  // Editable, triggers not registered
	WorkflowStatusActive WorkflowStatus = "active" // Validated, trigger subscriptions live
	WorkflowStatusPaused WorkflowStatus = "paused" // Subscriptions suspended, definition kept
)

// Workflow owns a graph definition plus its lifecycle status. Transitioning to
// active requires the definition to pass validation at that moment; editing an
// active workflow re-validates atomically.
type Workflow struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"        validate:"required,min=3"`
	Description string            `json:"description"`
	Status      WorkflowStatus    `json:"status"      validate:"required"`
	Definition  *GraphDefinition  `json:"definition"`
	Variables   map[string]any    `json:"variables,omitempty"`
	Credentials map[string]string `json:"credentials,omitempty"` // Opaque, handed to node handlers as-is
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Owner       string            `json:"owner"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	ActivatedAt *time.Time        `json:"activated_at,omitempty"`
}
