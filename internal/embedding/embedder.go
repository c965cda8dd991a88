package embedding

import (
	"context"
	"errors"

	"regaudit/internal/domain"
)

// Embedder converts free text into a fixed-length numeric vector.
type Embedder interface {
	Name() string
	// Dimension is the vector length, or 0 while a remote model has not
	// answered yet.
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Validate rejects empty vectors and vectors whose length differs from want.
// want <= 0 accepts any non-empty length. Vectors are never padded or cut.
func Validate(vec []float64, want int, what string) error {
	if len(vec) == 0 {
		return errors.New(what + ": embedder returned an empty vector")
	}
	if want > 0 && len(vec) != want {
		return domain.DimensionError(what, want, len(vec))
	}
	return nil
}
