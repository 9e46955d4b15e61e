package ai

import (
	"context"
	"fmt"

	appErr "github.com/docqahq/docqa/internal/pkg/errors"
)

// WrapDimensionCheckToEmbedder rejects vectors whose length differs
// from the pipeline dimension. Mismatches are never padded or
// truncated; a wrong-size vector aborts the operation.
func WrapDimensionCheckToEmbedder(e IEmbedder, dimension int) IEmbedder {
	if e == nil || dimension <= 0 {
		return e
	}
	return &dimensionEmbedder{next: e, dimension: dimension}
}

type dimensionEmbedder struct {
	next      IEmbedder
	dimension int
}

func (d *dimensionEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if len(res) != d.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", appErr.ErrDimensionMismatch, len(res), d.dimension)
	}
	return res, nil
}

func (d *dimensionEmbedder) ModelName() string {
	return d.next.ModelName()
}
