package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrAuthorizationDenied indicates the actor lacks the required permission.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrStagePrecondition indicates an action attempted outside the required workflow stage.
	ErrStagePrecondition = errors.New("workflow stage precondition failed")
	// ErrQuantityViolation indicates a dispatch quantity exceeding outstanding or stock limits.
	ErrQuantityViolation = errors.New("quantity violation")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// StageError reports the current and required workflow stage of a rejected action.
type StageError struct {
	Current  string
	Required string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("order is in stage %q, action requires stage %q", e.Current, e.Required)
}

// Is lets errors.Is match StageError against ErrStagePrecondition.
func (e *StageError) Is(target error) bool {
	return target == ErrStagePrecondition
}

// NewStageError builds a StageError.
func NewStageError(current, required string) error {
	return &StageError{Current: current, Required: required}
}

// QuantityError reports the computed limit a dispatch request exceeded.
type QuantityError struct {
	Subject   string
	Requested int
	Limit     int
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("requested quantity %d exceeds %s (%d)", e.Requested, e.Subject, e.Limit)
}

// Is lets errors.Is match QuantityError against ErrQuantityViolation.
func (e *QuantityError) Is(target error) bool {
	return target == ErrQuantityViolation
}

// NewQuantityError builds a QuantityError.
func NewQuantityError(subject string, requested, limit int) error {
	return &QuantityError{Subject: subject, Requested: requested, Limit: limit}
}
