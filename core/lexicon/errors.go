package lexicon

import (
	"errors"
	"fmt"
)

// ErrStoreNotFound is returned when neither a usable snapshot nor a
// paged store exists at load time. There is no reasonable in-memory
// fallback, so this is fatal for the load call.
var ErrStoreNotFound = errors.New("lexicon: no dictionary store found")

// SourceError wraps a failure scoped to a single lexicon source. The
// source is skipped; sibling sources are unaffected.
type SourceError struct {
	// Source identifies the failing source (path or title).
	Source string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError wraps err with the source's identity.
func NewSourceError(source string, err error) *SourceError {
	return &SourceError{Source: source, Err: err}
}
