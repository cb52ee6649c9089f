package app

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError under errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError is a rejected request field. Message is safe to return to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func newValidationError(message string) error {
	return &ValidationError{Message: message}
}

var (
	ErrWorkorderRequired       = newValidationError("WorkOrder is required")
	ErrContractorRequired      = newValidationError("Contractor name is required")
	ErrInvalidAmount           = newValidationError("Valid amount is required")
	ErrWorkersRequired         = newValidationError("Workers list is required")
	ErrNoWorkers               = newValidationError("At least one worker is required")
	ErrWorkerNameRequired      = newValidationError("Worker name is required")
	ErrWorkerPhoneRequired     = newValidationError("Worker phone is required")
	ErrWorkerPaymentsRequired  = newValidationError("Worker payments data is required")
	ErrNotAllocated            = newValidationError("Payment not allocated to workers yet")
	ErrWorkNotCompleted        = newValidationError("Work must be completed before recording payments")
	ErrLoginFieldsRequired     = newValidationError("Phone and name are required")
	ErrVerificationKeyRequired = newValidationError("Worker phone and workorder are required")
	ErrActualReceivedRequired  = newValidationError("Actual received amount must be greater than 0")
)

var (
	ErrWorkerNotFound   = errors.New("worker not found in any payment allocation")
	ErrLoginRateLimited = errors.New("too many login attempts")
)

// RateLimitedError is returned by WorkerLogin when the phone has used up its attempts.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s, retry after %ds", ErrLoginRateLimited, e.RetryAfterSeconds)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrLoginRateLimited }
