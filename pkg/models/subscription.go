package models

import "time"

// TriggerSubscription links an active workflow's trigger node to its external
// delivery mechanism: a webhook path for push triggers, or a poll cursor plus
// schedule for pull triggers. Created on activation, removed on deactivation.
// Cursor fields are mutated only by the poller, never by the engine.
type TriggerSubscription struct {
	ID             string         `json:"id"`
	WorkflowID     string         `json:"workflow_id"`
	NodeID         string         `json:"node_id"`
	TriggerType    string         `json:"trigger_type"`
	Path           string         `json:"path,omitempty"`     // Webhook triggers
	Schedule       string         `json:"schedule,omitempty"` // Poll triggers, cron expression
	Cursor         string         `json:"cursor,omitempty"`   // Last-seen external record id
	ExecutionCount int64          `json:"execution_count"`
	LastPayload    map[string]any `json:"last_payload,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
