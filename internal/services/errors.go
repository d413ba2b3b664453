package services

import "errors"

// Recoverable, caller-visible errors. Handlers map these to HTTP status
// codes with errors.Is; anything else is treated as an internal failure
// that aborts the enclosing transaction.
var (
	// ErrNotFound means the referenced task, agent, user, or order does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller is not the required owner.
	ErrForbidden = errors.New("forbidden")

	// ErrInsufficientFunds means a debit exceeds the account balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrValidation means the request was malformed or missing a required field.
	ErrValidation = errors.New("validation failed")

	// ErrGateway means the completion webhook call failed or returned non-2xx.
	ErrGateway = errors.New("webhook dispatch failed")

	// ErrConflict means the operation is invalid for the task's current state.
	ErrConflict = errors.New("conflict")
)
