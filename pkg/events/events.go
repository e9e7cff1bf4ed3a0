// Package events defines event types for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/weftflow/weft/pkg/models"
)

type EventType string

// Topic carries all execution lifecycle events.
const Topic = "weft.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionAbortedEvent   EventType = "execution.aborted"
	NodeCompletedEvent      EventType = "node.completed"
)

// Event is implemented by every lifecycle event.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	WorkflowID  string    `json:"workflow_id"`
	ExecutionID string    `json:"execution_id"`
}

type ExecutionStarted struct {
	BaseEvent

	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Result   map[string]any `json:"result,omitempty"`
	Duration time.Duration  `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	Error    *models.ExecutionError `json:"error"`
	Duration time.Duration          `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionAborted struct {
	BaseEvent

	AbortedBy string `json:"aborted_by,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (e ExecutionAborted) GetType() EventType {
	return ExecutionAbortedEvent
}

type NodeCompleted struct {
	BaseEvent

	NodeID   string            `json:"node_id"`
	NodeType string            `json:"node_type"`
	Status   models.StepStatus `json:"status"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}
