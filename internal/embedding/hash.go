package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is a deterministic local embedder: it hashes word tokens into
// a fixed-dimension bag-of-words vector and L2-normalizes it. Identical text
// always yields the identical vector, which makes clustering metrics
// reproducible without a remote embedding service.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder returns a HashEmbedder with the given dimension
// (values <= 0 fall back to 64).
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Name() string { return "local-hash" }

func (h *HashEmbedder) Dimension() int { return h.dim }

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, h.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		f.Write([]byte(word))
		vec[int(f.Sum32())%h.dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}
