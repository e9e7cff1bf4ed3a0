package models

import "time"

// ExecutionStatus defines the states of one graph walk. Transitions are
// forward-only; a terminal execution is immutable.
type ExecutionStatus string

const (
	ExecutionStatusPending         ExecutionStatus = "pending"
	ExecutionStatusRunning         ExecutionStatus = "running"
	ExecutionStatusSuccess         ExecutionStatus = "success"
	ExecutionStatusFailed          ExecutionStatus = "failed"
	ExecutionStatusCancelRequested ExecutionStatus = "cancel_requested"
	ExecutionStatusAborted         ExecutionStatus = "aborted"
)

// Terminal reports whether the status allows no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed || s == ExecutionStatusAborted
}

// StepStatus defines the per-step trace states.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusError   StepStatus = "error"
	StepStatusSkipped StepStatus = "skipped"
)

// ErrorKind classifies fatal engine errors recorded on a failed execution.
type ErrorKind string

const (
	ErrorKindUnknownNodeType     ErrorKind = "unknown_node_type"
	ErrorKindNodeConfigInvalid   ErrorKind = "node_config_invalid"
	ErrorKindNodeExecutionFailed ErrorKind = "node_execution_failed"
	ErrorKindAmbiguousRouting    ErrorKind = "ambiguous_routing"
	ErrorKindCycleDetected       ErrorKind = "cycle_detected"
)

// ExecutionError is the structured failure cause persisted on an execution.
type ExecutionError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	NodeID  string    `json:"node_id,omitempty"`
}

// StepTrace is one append-only trace entry for a node entered during a walk.
type StepTrace struct {
	NodeID     string         `json:"node_id"`
	NodeType   string         `json:"node_type"`
	Status     StepStatus     `json:"status"`
	Input      map[string]any `json:"input,omitempty"`  // Output of the preceding node
	Config     map[string]any `json:"config,omitempty"` // Config after template resolution
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Execution is one run of a graph definition against one triggering payload.
// It is owned exclusively by the engine for its duration; external actors may
// only request cancellation through the status field.
type Execution struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      ExecutionStatus `json:"status"`
	TriggerData map[string]any  `json:"trigger_data,omitempty"`
	Steps       []*StepTrace    `json:"steps"`
	Result      map[string]any  `json:"result,omitempty"`
	Error       *ExecutionError `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	AbortedAt   *time.Time      `json:"aborted_at,omitempty"`
	AbortedBy   string          `json:"aborted_by,omitempty"`
	AbortReason string          `json:"abort_reason,omitempty"`
}
