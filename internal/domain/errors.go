package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector length disagrees with the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrMetricMismatch is returned when a query names a metric other than the index metric.
	ErrMetricMismatch = errors.New("metric mismatch")
	// ErrInvalidThresholds is returned when partial_threshold > satisfied_threshold
	// or a threshold leaves [0,1].
	ErrInvalidThresholds = errors.New("invalid thresholds")
	// ErrUnknownRequirement signals a verdict for a requirement that is not in the corpus.
	ErrUnknownRequirement = errors.New("unknown requirement")
	// ErrUnknownSegment signals evidence pointing at a segment that is not in the run.
	ErrUnknownSegment = errors.New("unknown segment")
	// ErrMissingVerdict signals a requirement that received no verdict.
	ErrMissingVerdict = errors.New("missing verdict")
	// ErrCancelled is returned when the caller cancelled the operation.
	ErrCancelled = errors.New("cancelled")
	ErrInvalidConfig = errors.New("invalid config")
	ErrInvalidCorpus = errors.New("invalid corpus")
)

// ContextErr returns nil while ctx is live, and an error matching both
// ErrCancelled and the context cause once it is done.
func ContextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// DimensionError builds an ErrDimensionMismatch with the offending lengths.
func DimensionError(what string, want, got int) error {
	return fmt.Errorf("%w: %s has %d dimensions, index expects %d", ErrDimensionMismatch, what, got, want)
}
