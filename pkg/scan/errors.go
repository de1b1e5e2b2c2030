package scan

import "errors"

var (
	// ErrMalformedSource indicates a rule source or record stream that is present
	// but cannot be parsed. Output produced before the error must be discarded.
	ErrMalformedSource = errors.New("malformed source")
	// ErrMissingHeader indicates an input stream with no header row at all.
	ErrMissingHeader = errors.New("missing header row")
	// ErrInvalidChunkSize indicates a non-positive split chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)
