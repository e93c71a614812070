package engine

import "errors"

// Common engine errors.
var (
	// ErrMalformedBatch indicates a caller contract violation: a listing in
	// the batch is structurally invalid (missing identity, zero timestamp,
	// out-of-enum field). The whole batch fails; no partial results.
	ErrMalformedBatch = errors.New("malformed batch input")

	// ErrInvalidConfig indicates the engine configuration is inconsistent.
	ErrInvalidConfig = errors.New("invalid engine config")
)
