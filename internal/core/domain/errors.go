package domain

import "errors"

// Storage-level failures that services translate into application errors.
// Repositories wrap these so errors.Is works through the wrapping chain.
var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrReferenced   = errors.New("row is still referenced")
	ErrLockTimeout  = errors.New("lock timeout")
)
