package responses

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo for tests and local runs.
type MemoryRepo struct {
	mu             sync.RWMutex
	questionnaires map[string]Questionnaire
	byQuestion     map[string]string // questionID -> questionnaireID
	data           map[string][]Response
}

var _ Repo = (*MemoryRepo)(nil)

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		questionnaires: make(map[string]Questionnaire),
		byQuestion:     make(map[string]string),
		data:           make(map[string][]Response),
	}
}

// PutQuestionnaire stores a questionnaire definition.
func (r *MemoryRepo) PutQuestionnaire(q Questionnaire) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questionnaires[q.ID] = q
	for _, g := range q.Groups {
		for _, question := range g.Questions {
			r.byQuestion[question.ID] = q.ID
		}
	}
}

// AddResponses appends responses; each must reference a known question.
func (r *MemoryRepo) AddResponses(resps ...Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, resp := range resps {
		qid, ok := r.byQuestion[resp.QuestionID]
		if !ok {
			continue
		}
		r.data[qid] = append(r.data[qid], resp)
	}
}

// GetQuestionnaire returns the stored questionnaire.
func (r *MemoryRepo) GetQuestionnaire(ctx context.Context, questionnaireID string) (Questionnaire, error) {
	if err := ctx.Err(); err != nil {
		return Questionnaire{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.questionnaires[questionnaireID]
	if !ok {
		return Questionnaire{}, ErrNotFound
	}
	return q, nil
}

// ListResponses returns responses in submission order.
func (r *MemoryRepo) ListResponses(ctx context.Context, questionnaireID string) ([]Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	stored := r.data[questionnaireID]
	r.mu.RUnlock()

	out := make([]Response, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}
