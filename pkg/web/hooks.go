package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/weftflow/weft/pkg/workflow"
)

// EventIDHeader carries the external event identifier that feeds idempotent
// admission. Deliveries without it get a fresh id and are never deduplicated.
const EventIDHeader = "X-Event-ID"

// HandleWebhook receives an external event on a registered webhook path and
// runs the subscribed workflow at most once per event id. Duplicate
// deliveries acknowledge with the original execution id.
func (h *APIHandlers) HandleWebhook(c fiber.Ctx) error {
	path := c.Params("path")
	if path == "" {
		return badRequest(c, "Webhook path is required")
	}

	sub, err := h.persistence.SubscriptionRepository().GetByPath(c.Context(), path)
	if err != nil {
		return handleServiceError(c, err)
	}

	payload := make(map[string]any)
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &payload); err != nil {
			return badRequest(c, "Invalid JSON payload")
		}
	}

	eventID := c.Get(EventIDHeader)
	if eventID == "" {
		eventID = uuid.NewString()
	}

	result, err := h.executor.ExecuteIdempotent(c.Context(), sub.WorkflowID, sub.NodeID, eventID, payload)
	if result == nil {
		return handleServiceError(c, err)
	}

	response := ExecutionResponse{
		ExecutionID: result.ExecutionID,
		IsDuplicate: result.IsDuplicate,
	}

	if err != nil {
		var failure *workflow.ExecutionFailure
		if !errors.As(err, &failure) {
			return handleServiceError(c, err)
		}
	}

	if execution, getErr := h.executor.GetExecution(c.Context(), result.ExecutionID); getErr == nil {
		response.Status = execution.Status
	}

	httpStatus := fiber.StatusCreated
	if result.IsDuplicate {
		httpStatus = fiber.StatusOK
	}

	return c.Status(httpStatus).JSON(response)
}
