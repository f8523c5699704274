package skills

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrEmbedding        = errors.New("embedding failed")
)

// InvalidParameterError reports an Options value rejected before any work is done.
type InvalidParameterError struct {
	Param  string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Param, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidParameter) match.
func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// EmbeddingError reports that the embedder failed or returned vectors that do
// not line up with the labels it was given. It is never converted into an
// empty ranking.
type EmbeddingError struct {
	// Cause is the embedder's own error, nil for shape mismatches.
	Cause error
	// Expected and Got are vector counts (or dimensions, see Reason).
	Expected int
	Got      int
	Reason   string
}

func (e *EmbeddingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("embedding failed: %v", e.Cause)
	}
	return fmt.Sprintf("embedding failed: %s (expected %d, got %d)", e.Reason, e.Expected, e.Got)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrEmbedding) match.
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbedding
}
