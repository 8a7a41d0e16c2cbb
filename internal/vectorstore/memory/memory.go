// Package memory is a brute-force in-memory vector store used in tests and
// single-process deployments.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"survey-insights/internal/vector"
	"survey-insights/internal/vectorstore"
)

// Store keeps vectors in a slice and scans linearly with cosine similarity.
type Store struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	records   []vectorstore.Record
}

var _ vectorstore.Store = (*Store)(nil)

func NewStore() *Store { return &Store{} }

func (s *Store) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.records = nil
	return nil
}

func (s *Store) Upsert(_ context.Context, records []vectorstore.Record, vectors [][]float64) error {
	if len(records) != len(vectors) {
		return errors.New("records and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	s.records = append(s.records, records...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

func (s *Store) Search(_ context.Context, query []float64, topK int) ([]vectorstore.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}

	results := make([]vectorstore.SearchResult, len(s.vectors))
	for i := range s.vectors {
		results[i] = vectorstore.SearchResult{
			Record: s.records[i],
			Score:  vector.Cosine(s.vectors[i], query),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.records = nil
	return nil
}
