package consent

import (
	"context"
	"sync"
)

type memoryRegistry struct {
	mu      sync.RWMutex
	records []Record
}

var _ Registry = (*memoryRegistry)(nil)

// NewMemoryRegistry constructs an in-memory consent registry.
func NewMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{}
}

// Add stores a consent record.
func (s *memoryRegistry) Add(rec Record) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
}

func (s *memoryRegistry) HasGrantedConsent(ctx context.Context, questionnaireID string, consentType Type) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.QuestionnaireID == questionnaireID && rec.ConsentType == consentType && rec.Granted {
			return true, nil
		}
	}
	return false, nil
}
