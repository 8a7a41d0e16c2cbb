// Package embedding converts sanitized answer text into numeric vectors for
// clustering metrics. The production client speaks the OpenAI-compatible
// embeddings API; a deterministic local embedder serves tests and keyless
// development.
package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbedAll embeds texts concurrently, preserving input order. At most limit
// calls run at once (limit <= 0 means 4). The first error cancels the rest.
func EmbedAll(ctx context.Context, e Embedder, texts []string, limit int) ([][]float64, error) {
	if limit <= 0 {
		limit = 4
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	out := make([][]float64, len(texts))
	for i, text := range texts {
		g.Go(func() error {
			v, err := e.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
