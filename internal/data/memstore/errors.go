package memstore

import "errors"

var (
	// ErrAttemptNotFound is returned when a ledger row does not exist.
	ErrAttemptNotFound = errors.New("upload attempt not found")
	// ErrInvalidStatus is returned for statuses the ledger does not accept.
	ErrInvalidStatus = errors.New("invalid upload status")
	// ErrInvalidKey is returned for folder keys with an empty component.
	ErrInvalidKey = errors.New("folder key requires context and recipient")
)
