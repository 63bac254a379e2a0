package domain

import "errors"

// Engine error taxonomy. Handlers map these to HTTP statuses; the
// distinction between ErrForbidden (not allowed) and ErrInvalidState
// (not possible right now) is part of the contract.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("caller lacks the required role for this entity")
	ErrInvalidState = errors.New("operation not valid from current state")
	ErrConflict     = errors.New("invariant violation detected")
	ErrTimeout      = errors.New("transaction did not complete in time")
)

// Auth/user errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Book errors
var (
	ErrBookNotFound = errors.New("book not found")
	ErrBookOnLoan   = errors.New("book has a loan in progress")
)
