// Package vectorstore abstracts where sanitized response vectors live so an
// in-memory implementation and a production store share one contract.
package vectorstore

import "context"

// Record is the privacy-safe payload stored next to each vector. Text is
// always redacted answer text; raw responses never reach a store.
type Record struct {
	ResponseID string
	QuestionID string
	Text       string
}

// SearchResult is a matching record with its similarity score.
type SearchResult struct {
	Record Record
	Score  float64
}

// Store persists vectors and supports similarity search.
type Store interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, records []Record, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	Clear(ctx context.Context) error
}
