// README: Matching error taxonomy; every error supports errors.Is against a sentinel.
package matching

import (
	"errors"
	"fmt"

	"lifeline/internal/modules/inventory"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNoAvailability = errors.New("no availability")
	ErrRetryExhausted = errors.New("reservation retries exhausted")
)

type InvalidRequestError struct {
	Field   string
	Message string
}

func (e *InvalidRequestError) Error() string        { return e.Message }
func (e *InvalidRequestError) Is(target error) bool { return target == ErrInvalidRequest }

type NoAvailabilityError struct {
	Kind inventory.Kind
}

func (e *NoAvailabilityError) Error() string {
	return fmt.Sprintf("no hospital has an available %s bed", e.Kind)
}

func (e *NoAvailabilityError) Is(target error) bool { return target == ErrNoAvailability }

// RetryExhaustedError is returned when every attempt lost its bed to a
// concurrent reservation. It is safe for the caller to retry.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("could not reserve a bed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Is(target error) bool { return target == ErrRetryExhausted }
func (e *RetryExhaustedError) Unwrap() error        { return e.Err }
