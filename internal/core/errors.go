package core

import "errors"

// Error kinds surfaced by the engine. Callers classify failures with
// errors.Is; the HTTP layer maps each kind to a status code.
var (
	// ErrUnauthorized means no valid user context was supplied.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidRequest means required parameters are missing or malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound means a requested ledger entry or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInternal means a record-store or computation failure. Safe to retry:
	// no partial writes happen before a month's persist step.
	ErrInternal = errors.New("internal failure")
)
