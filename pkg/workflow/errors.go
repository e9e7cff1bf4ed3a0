package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weftflow/weft/pkg/models"
)

// ErrExecutionFinished is returned when cancellation is requested for an
// execution that already reached a terminal state.
var ErrExecutionFinished = errors.New("execution already finished")

// ValidationError carries every constraint a definition violates. Validation
// never partially succeeds: one violation fails the whole definition.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow definition invalid: %s", strings.Join(e.Violations, "; "))
}

// IsValidationError checks whether err is a definition validation failure.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

// ExecutionFailure is the error form of the structured failure persisted on a
// failed execution.
type ExecutionFailure struct {
	Kind    models.ErrorKind
	NodeID  string
	Message string
	Cause   error
}

func (e *ExecutionFailure) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s at node %s: %s", e.Kind, e.NodeID, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ExecutionFailure) Unwrap() error {
	return e.Cause
}

// AsExecutionError converts the failure to its persisted representation.
func (e *ExecutionFailure) AsExecutionError() *models.ExecutionError {
	return &models.ExecutionError{
		Kind:    e.Kind,
		Message: e.Message,
		NodeID:  e.NodeID,
	}
}
