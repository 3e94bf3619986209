package service

import "errors"

// Sentinel errors forming the failure taxonomy handlers map to HTTP codes.
// Services wrap these with fmt.Errorf("%w: ...") so callers can classify
// with errors.Is while keeping the specific message.
var (
	// ErrPermissionDenied means the actor is not authorized for the action
	// or fields. Never retried; surfaced verbatim to the caller.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidState means the operation conflicts with the current
	// lifecycle status (e.g. approving a non-pending requisition).
	ErrInvalidState = errors.New("invalid state")

	// ErrNotFound means the referenced requisition, supplier or user
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation means the input was rejected before any persistence
	// write (missing title, empty items, non-positive quantity, ...).
	ErrValidation = errors.New("validation failed")
)
