package messaging

import "errors"

// Domain-level errors for messaging behaviors
var (
	// ErrValidation marks client-input failures: missing or malformed
	// addresses, unparsable timestamps, unrecognized payload shapes.
	ErrValidation = errors.New("messaging: invalid payload")

	// ErrNotFound marks lookups of conversations or messages that do not exist.
	ErrNotFound = errors.New("messaging: not found")
)
