// Package services provides the request-validated application layer between
// the HTTP surface and the workflow store and engine.
package services

import (
	"errors"
	"fmt"

	"github.com/flowdeck/flowdeck/pkg/workflow"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrWorkflowNil        = errors.New("workflow cannot be nil")
	ErrNameRequired       = errors.New("workflow name is required")
	ErrNodesRequired      = errors.New("workflow must have at least one node")
	ErrTriggerRequired    = errors.New("workflow must have at least one trigger node")
	ErrNodeNotFound       = errors.New("node not found")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrWorkflowNotActive  = errors.New("workflow is not executable in its current status")
	ErrCycleDetected      = workflow.ErrCycleDetected
	ErrInvalidConnection  = workflow.ErrInvalidConnection
)

// ServiceError wraps a service failure with its operation context.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrTriggerRequired) ||
		errors.Is(err, ErrCycleDetected) ||
		errors.Is(err, ErrInvalidConnection)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowNotActive)
}
