package actions

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrUnknownKind     = errors.New("unknown action type")
	ErrInvalidAction   = errors.New("action failed validation")
	ErrSequenceStopped = errors.New("sequence stopped after a failed step")
)

// ExecutionError is returned when an action's side effect fails at runtime.
type ExecutionError struct {
	ActionID    uuid.UUID
	Kind        Kind
	Description string
	Err         error
}

func (e *ExecutionError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s action %q failed: %v", e.Kind, e.Description, e.Err)
	}
	return fmt.Sprintf("%s action failed: %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ResourceUnavailableError reports a device, file or driver that could not be
// reached. Any cached handle for the resource has been dropped by the time it
// is returned.
type ResourceUnavailableError struct {
	Resource string
	Name     string
	Err      error
}

func (e *ResourceUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q is not available: %v", e.Resource, e.Name, e.Err)
	}
	return fmt.Sprintf("%s %q is not available", e.Resource, e.Name)
}

func (e *ResourceUnavailableError) Unwrap() error { return e.Err }
