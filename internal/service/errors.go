// Package service holds the business logic of the platform: booking with
// conflict detection, payment checkout/capture through the gateway breaker,
// the inspection state machine, and certificate/invoice generation.  Handlers
// translate the error types defined here into HTTP responses; consumers call
// the same services from broker deliveries.
package service

import "fmt"

// ValidationError carries every violated rule for a rejected request.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return e.Violations[0]
	}
	return fmt.Sprintf("%d validation errors", len(e.Violations))
}

// ConflictError means the request lost a race or hit a state guard: slot
// already taken, appointment already paid, inspection already completed.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// ForbiddenError means the authenticated caller may not act on the resource.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string { return e.Msg }

// DownstreamError wraps a failure from an external dependency (the payment
// gateway, usually through the circuit breaker).  Handlers map it to 502/503.
type DownstreamError struct {
	Op  string
	Err error
}

func (e *DownstreamError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *DownstreamError) Unwrap() error { return e.Err }
