package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/weftflow/weft/pkg/eventbus"
	"github.com/weftflow/weft/pkg/events"
	"github.com/weftflow/weft/pkg/ledger"
	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/otelhelper"
	"github.com/weftflow/weft/pkg/persistence"
	"github.com/weftflow/weft/pkg/protocol"
	"github.com/weftflow/weft/pkg/registry"
	"github.com/weftflow/weft/pkg/template"
)

// ErrWorkflowNotActive is returned when an execution is requested for a
// workflow that is not in the active state.
var ErrWorkflowNotActive = errors.New("workflow is not active")

// ErrNoLedger is returned from ExecuteIdempotent when the executor was built
// without an idempotency ledger.
var ErrNoLedger = errors.New("no idempotency ledger configured")

// IdempotentResult reports the outcome of a deduplicated trigger delivery.
// On a duplicate, ExecutionID names the execution admitted for the original
// delivery and no new execution was started.
type IdempotentResult struct {
	ExecutionID string `json:"execution_id"`
	IsDuplicate bool   `json:"is_duplicate"`
}

// Executor walks workflow graphs. It resolves each node's config against the
// outputs accumulated so far, validates it, runs the node handler, and records
// a step trace, honoring cancellation between steps but never mid-node.
type Executor struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	resolver    *template.Resolver
	idempotency ledger.Ledger
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	logger      *slog.Logger
}

type ExecutorOption func(*Executor)

// WithLedger enables at-most-one execution per external event delivery.
func WithLedger(l ledger.Ledger) ExecutorOption {
	return func(e *Executor) { e.idempotency = l }
}

// WithEventBus enables lifecycle event publishing.
func WithEventBus(bus eventbus.EventBus) ExecutorOption {
	return func(e *Executor) { e.eventBus = bus }
}

// WithTracer enables per-execution and per-node spans.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = tracer }
}

// WithResolver replaces the default lenient template resolver.
func WithResolver(resolver *template.Resolver) ExecutorOption {
	return func(e *Executor) { e.resolver = resolver }
}

func NewExecutor(store persistence.Persistence, reg *registry.Registry, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	executor := &Executor{
		persistence: store,
		registry:    reg,
		resolver:    template.NewResolver(),
		logger:      logger.With("module", "executor"),
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs the active workflow once against the given trigger payload and
// blocks until the walk reaches a terminal state. The execution id is returned
// even when the walk fails; the failure is recorded on the execution and
// mirrored in the returned error.
func (e *Executor) Execute(ctx context.Context, workflowID string, triggerData map[string]any) (string, error) {
	executionID := uuid.NewString()

	return executionID, e.run(ctx, workflowID, executionID, triggerData)
}

// ExecuteIdempotent runs the workflow at most once for the given external
// event. The (workflow, event, trigger node) key is admitted to the ledger
// before anything else happens; a duplicate delivery returns the original
// execution id without starting a new walk.
func (e *Executor) ExecuteIdempotent(ctx context.Context, workflowID, nodeID, eventID string, triggerData map[string]any) (*IdempotentResult, error) {
	if e.idempotency == nil {
		return nil, ErrNoLedger
	}

	executionID := uuid.NewString()
	key := ledger.Key{WorkflowID: workflowID, EventID: eventID, NodeID: nodeID}

	admission, err := e.idempotency.Admit(ctx, key, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to admit event %s: %w", key, err)
	}

	if !admission.IsNew {
		e.logger.InfoContext(ctx, "Duplicate event delivery ignored",
			"workflow_id", workflowID, "event_id", eventID, "execution_id", admission.ExecutionID)

		return &IdempotentResult{ExecutionID: admission.ExecutionID, IsDuplicate: true}, nil
	}

	return &IdempotentResult{ExecutionID: executionID}, e.run(ctx, workflowID, executionID, triggerData)
}

// RequestCancellation marks a pending or running execution for cancellation.
// The engine honors the request at the next step boundary. Returns
// ErrExecutionFinished when the execution already reached a terminal state.
func (e *Executor) RequestCancellation(ctx context.Context, executionID, requestedBy, reason string) error {
	requested, err := e.persistence.ExecutionRepository().RequestCancellation(ctx, executionID, requestedBy, reason)
	if err != nil {
		return fmt.Errorf("failed to request cancellation for execution %s: %w", executionID, err)
	}

	if !requested {
		return ErrExecutionFinished
	}

	e.logger.InfoContext(ctx, "Cancellation requested",
		"execution_id", executionID, "requested_by", requestedBy)

	return nil
}

// GetExecution returns the stored execution record with its step trace.
func (e *Executor) GetExecution(ctx context.Context, executionID string) (*models.Execution, error) {
	return e.persistence.ExecutionRepository().GetByID(ctx, executionID)
}

func (e *Executor) run(ctx context.Context, workflowID, executionID string, triggerData map[string]any) error {
	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
			attribute.String(otelhelper.WorkflowIDKey, workflowID),
			attribute.String(otelhelper.ExecutionIDKey, executionID),
		)
		defer span.End()
	}

	wf, err := e.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	if wf.Status != models.WorkflowStatusActive {
		return fmt.Errorf("workflow %s: %w", workflowID, ErrWorkflowNotActive)
	}

	execution := &models.Execution{
		ID:          executionID,
		WorkflowID:  workflowID,
		Status:      models.ExecutionStatusPending,
		TriggerData: triggerData,
		Steps:       make([]*models.StepTrace, 0),
		StartedAt:   time.Now().UTC(),
	}

	// Admitted as pending, then moved to running. The record exists before the
	// walk starts, so cancellation can target it from the first moment.
	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist execution %s: %w", executionID, err)
	}

	execution.Status = models.ExecutionStatusRunning

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist execution %s: %w", executionID, err)
	}

	e.publish(ctx, events.ExecutionStarted{
		BaseEvent:   e.baseEvent(events.ExecutionStartedEvent, execution),
		TriggerData: triggerData,
	})

	e.logger.InfoContext(ctx, "Execution started",
		"workflow_id", workflowID, "execution_id", executionID)

	return e.walk(ctx, wf, execution)
}

// walk advances node by node until the graph terminates, a node fails, a
// cycle or routing conflict is detected, or a cancellation request is
// observed at a step boundary.
func (e *Executor) walk(ctx context.Context, wf *models.Workflow, execution *models.Execution) error {
	current, ok := wf.Definition.EntryNode()
	if !ok {
		// Non-empty definitions without an entry node are provably cyclic:
		// every node has an incoming edge.
		return e.fail(ctx, execution, &ExecutionFailure{
			Kind:    models.ErrorKindCycleDetected,
			Message: "no entry node: every node has incoming edges",
		})
	}

	outputs := make(map[string]map[string]any)
	visited := make(map[string]bool)

	var input map[string]any

	for {
		if visited[current.ID] {
			return e.fail(ctx, execution, &ExecutionFailure{
				Kind:    models.ErrorKindCycleDetected,
				NodeID:  current.ID,
				Message: fmt.Sprintf("node %s reached twice in one walk", current.ID),
			})
		}

		visited[current.ID] = true

		aborted, err := e.checkCancellation(ctx, execution)
		if err != nil {
			return err
		}

		if aborted {
			return nil
		}

		result, failure := e.runStep(ctx, wf, execution, current, input, outputs)
		if failure != nil {
			return e.fail(ctx, execution, failure)
		}

		outputs[current.ID] = result.Output

		if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
			e.logger.ErrorContext(ctx, "Failed to persist execution snapshot",
				"execution_id", execution.ID, "error", err)
		}

		next, failure := e.route(current, result, wf.Definition)
		if failure != nil {
			return e.fail(ctx, execution, failure)
		}

		if next == nil {
			return e.complete(ctx, execution, result.Output)
		}

		input = result.Output
		current = next
	}
}

// runStep resolves, validates, and runs one node, appending its trace entry.
// A non-nil failure means the execution must fail; the error trace entry is
// already appended.
func (e *Executor) runStep(
	ctx context.Context,
	wf *models.Workflow,
	execution *models.Execution,
	node *models.GraphNode,
	input map[string]any,
	outputs map[string]map[string]any,
) (*protocol.Result, *ExecutionFailure) {
	stepCtx := ctx

	if e.tracer != nil {
		var span trace.Span

		stepCtx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
			attribute.String(otelhelper.ExecutionIDKey, execution.ID),
			attribute.String(otelhelper.NodeIDKey, node.ID),
			attribute.String(otelhelper.NodeTypeKey, node.Type),
		)
		defer span.End()
	}

	step := &models.StepTrace{
		NodeID:    node.ID,
		NodeType:  node.Type,
		Input:     input,
		StartedAt: time.Now().UTC(),
	}

	handler, err := e.registry.Get(node.Type)
	if err != nil {
		return nil, e.stepError(stepCtx, execution, step, &ExecutionFailure{
			Kind:    models.ErrorKindUnknownNodeType,
			NodeID:  node.ID,
			Message: err.Error(),
			Cause:   err,
		})
	}

	scope := e.buildScope(wf, execution, outputs)

	config, err := e.resolver.ResolveConfig(node.Config, scope)
	if err != nil {
		return nil, e.stepError(stepCtx, execution, step, &ExecutionFailure{
			Kind:    models.ErrorKindNodeConfigInvalid,
			NodeID:  node.ID,
			Message: fmt.Sprintf("template resolution failed: %s", err),
			Cause:   err,
		})
	}

	step.Config = config

	if err := registry.ValidateConfig(handler, config); err != nil {
		return nil, e.stepError(stepCtx, execution, step, &ExecutionFailure{
			Kind:    models.ErrorKindNodeConfigInvalid,
			NodeID:  node.ID,
			Message: err.Error(),
			Cause:   err,
		})
	}

	result, err := handler.Run(stepCtx, protocol.NodeContext{
		ExecutionID: execution.ID,
		WorkflowID:  wf.ID,
		Config:      config,
		Input:       input,
		Trigger:     execution.TriggerData,
		Variables:   wf.Variables,
		Credentials: wf.Credentials,
		Logger:      e.logger.With("node_id", node.ID, "node_type", node.Type),
	})
	if err != nil {
		return nil, e.stepError(stepCtx, execution, step, &ExecutionFailure{
			Kind:    models.ErrorKindNodeExecutionFailed,
			NodeID:  node.ID,
			Message: err.Error(),
			Cause:   err,
		})
	}

	if result == nil {
		result = &protocol.Result{}
	}

	if err := registry.ValidateOutput(handler, result.Output); err != nil {
		return nil, e.stepError(stepCtx, execution, step, &ExecutionFailure{
			Kind:    models.ErrorKindNodeExecutionFailed,
			NodeID:  node.ID,
			Message: err.Error(),
			Cause:   err,
		})
	}

	step.Status = models.StepStatusSuccess
	step.Output = result.Output
	step.FinishedAt = time.Now().UTC()
	execution.Steps = append(execution.Steps, step)

	e.publish(stepCtx, events.NodeCompleted{
		BaseEvent: e.baseEvent(events.NodeCompletedEvent, execution),
		NodeID:    node.ID,
		NodeType:  node.Type,
		Status:    models.StepStatusSuccess,
	})

	e.logger.DebugContext(stepCtx, "Node completed",
		"execution_id", execution.ID, "node_id", node.ID, "node_type", node.Type)

	return result, nil
}

// stepError appends the failed step's trace entry and returns the failure.
func (e *Executor) stepError(ctx context.Context, execution *models.Execution, step *models.StepTrace, failure *ExecutionFailure) *ExecutionFailure {
	step.Status = models.StepStatusError
	step.Error = failure.Message
	step.FinishedAt = time.Now().UTC()
	execution.Steps = append(execution.Steps, step)

	e.publish(ctx, events.NodeCompleted{
		BaseEvent: e.baseEvent(events.NodeCompletedEvent, execution),
		NodeID:    step.NodeID,
		NodeType:  step.NodeType,
		Status:    models.StepStatusError,
	})

	return failure
}

// route selects the next node from the edges leaving the finished one. An
// edge matches when its condition is absent or equals the returned outcome;
// the validator only permits unconditional edges on non-logic nodes, but they
// still match here so out-of-band definitions route rather than dead-end. No
// match terminates the walk cleanly, more than one match is a routing
// conflict.
func (e *Executor) route(node *models.GraphNode, result *protocol.Result, def *models.GraphDefinition) (*models.GraphNode, *ExecutionFailure) {
	matched := make([]*models.GraphEdge, 0, 1)

	for _, edge := range def.OutgoingEdges(node.ID) {
		if edge.Condition == "" || edge.Condition == result.Outcome {
			matched = append(matched, edge)
		}
	}

	if len(matched) > 1 {
		targets := make([]string, 0, len(matched))
		for _, edge := range matched {
			targets = append(targets, edge.To)
		}

		return nil, &ExecutionFailure{
			Kind:    models.ErrorKindAmbiguousRouting,
			NodeID:  node.ID,
			Message: fmt.Sprintf("node %s matched %d outgoing edges %v, expected at most one", node.ID, len(matched), targets),
		}
	}

	if len(matched) == 0 {
		return nil, nil
	}

	next := def.NodeByID(matched[0].To)
	if next == nil {
		return nil, &ExecutionFailure{
			Kind:    models.ErrorKindNodeExecutionFailed,
			NodeID:  node.ID,
			Message: fmt.Sprintf("edge from %s targets undeclared node %s", node.ID, matched[0].To),
		}
	}

	return next, nil
}

// buildScope assembles the template resolution scope: every finished node's
// output under its node id, the trigger payload, and workflow variables.
func (e *Executor) buildScope(wf *models.Workflow, execution *models.Execution, outputs map[string]map[string]any) map[string]any {
	scope := make(map[string]any, len(outputs)+2)

	for nodeID, output := range outputs {
		scope[nodeID] = output
	}

	scope[template.TriggerAlias] = execution.TriggerData

	if wf.Variables != nil {
		scope[template.VariablesAlias] = wf.Variables
	}

	return scope
}

// checkCancellation re-reads the stored status at a step boundary and, if an
// external actor requested cancellation, moves the execution to aborted.
func (e *Executor) checkCancellation(ctx context.Context, execution *models.Execution) (bool, error) {
	status, err := e.persistence.ExecutionRepository().Status(ctx, execution.ID)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to read execution status at step boundary",
			"execution_id", execution.ID, "error", err)

		return false, nil
	}

	if status != models.ExecutionStatusCancelRequested {
		return false, nil
	}

	// The stored record carries who requested the abort and why.
	stored, err := e.persistence.ExecutionRepository().GetByID(ctx, execution.ID)
	if err == nil {
		execution.AbortedAt = stored.AbortedAt
		execution.AbortedBy = stored.AbortedBy
		execution.AbortReason = stored.AbortReason
	}

	if execution.AbortedAt == nil {
		now := time.Now().UTC()
		execution.AbortedAt = &now
	}

	execution.Status = models.ExecutionStatusAborted
	finished := time.Now().UTC()
	execution.FinishedAt = &finished

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return false, fmt.Errorf("failed to persist aborted execution %s: %w", execution.ID, err)
	}

	e.publish(ctx, events.ExecutionAborted{
		BaseEvent: e.baseEvent(events.ExecutionAbortedEvent, execution),
		AbortedBy: execution.AbortedBy,
		Reason:    execution.AbortReason,
	})

	e.logger.InfoContext(ctx, "Execution aborted",
		"execution_id", execution.ID, "aborted_by", execution.AbortedBy,
		"steps_completed", len(execution.Steps))

	return true, nil
}

func (e *Executor) complete(ctx context.Context, execution *models.Execution, result map[string]any) error {
	execution.Status = models.ExecutionStatusSuccess
	execution.Result = result
	finished := time.Now().UTC()
	execution.FinishedAt = &finished

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist completed execution %s: %w", execution.ID, err)
	}

	e.publish(ctx, events.ExecutionCompleted{
		BaseEvent: e.baseEvent(events.ExecutionCompletedEvent, execution),
		Result:    result,
		Duration:  finished.Sub(execution.StartedAt),
	})

	e.logger.InfoContext(ctx, "Execution completed",
		"execution_id", execution.ID, "workflow_id", execution.WorkflowID,
		"steps", len(execution.Steps), "duration", finished.Sub(execution.StartedAt))

	return nil
}

// fail persists the structured failure and returns it as the walk's error.
func (e *Executor) fail(ctx context.Context, execution *models.Execution, failure *ExecutionFailure) error {
	execution.Status = models.ExecutionStatusFailed
	execution.Error = failure.AsExecutionError()
	finished := time.Now().UTC()
	execution.FinishedAt = &finished

	if err := e.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist failed execution",
			"execution_id", execution.ID, "error", err)
	}

	e.publish(ctx, events.ExecutionFailed{
		BaseEvent: e.baseEvent(events.ExecutionFailedEvent, execution),
		Error:     execution.Error,
		Duration:  finished.Sub(execution.StartedAt),
	})

	e.logger.ErrorContext(ctx, "Execution failed",
		"execution_id", execution.ID, "workflow_id", execution.WorkflowID,
		"kind", failure.Kind, "node_id", failure.NodeID, "error", failure.Message)

	return failure
}

func (e *Executor) baseEvent(eventType events.EventType, execution *models.Execution) events.BaseEvent {
	id := uuid.NewString()
	if e.eventBus != nil {
		id = e.eventBus.GenerateID()
	}

	return events.BaseEvent{
		ID:          id,
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  execution.WorkflowID,
		ExecutionID: execution.ID,
	}
}

// publish sends a lifecycle event when a bus is configured. Publishing is
// best effort and never fails the execution.
func (e *Executor) publish(ctx context.Context, event events.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, uuid.NewString(), event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", event.GetType(), "error", err)
	}
}
