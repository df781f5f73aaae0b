package store

import "errors"

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrInvalidState   = errors.New("invalid transition")
	ErrValidation     = errors.New("invalid input")
	ErrBadCredentials = errors.New("invalid credentials")
	// ErrStorage marks a backing-medium failure. It must always propagate:
	// masking an unreadable store as an empty record set silently loses
	// every ticket and setting.
	ErrStorage = errors.New("storage failure")
)
