package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTransition is returned when a decision is not accepted at the current step
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidStep is returned when a step name is not part of the pipeline
	ErrInvalidStep = errors.New("invalid step")

	// ErrGuardFailed is returned when no guarded transition matched
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrTerminalState is returned for decisions on completed or rejected locations
	ErrTerminalState = errors.New("location is in a terminal state")

	ErrNotFound    = errors.New("location not found")
	ErrValidation  = errors.New("validation failed")
	ErrStaleState  = errors.New("state changed, please reload")
	ErrPersistence = errors.New("persistence failure")
)

// FieldError names one rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that blocked the operation
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError returns nil when no field errors were collected
func NewValidationError(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StaleStateError reports that the caller acted on an outdated step
type StaleStateError struct {
	LocationID string
	Expected   Step
	Actual     Step
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("%s: location %s is at %s, not %s", ErrStaleState, e.LocationID, e.Actual, e.Expected)
}

func (e *StaleStateError) Is(target error) bool {
	return target == ErrStaleState
}

// PersistenceError wraps a storage failure during an operation
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
