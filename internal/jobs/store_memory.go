package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in memory for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	results map[string]*Result
	events  []Event
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*Job),
		results: make(map[string]*Result),
	}
}

func resultKey(questionnaireID, analysisType string) string {
	return questionnaireID + "\x00" + analysisType
}

func copyJob(job *Job) *Job {
	dup := *job
	dup.AnalysisTypes = append([]string(nil), job.AnalysisTypes...)
	if job.StartedAt != nil {
		t := *job.StartedAt
		dup.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		dup.CompletedAt = &t
	}
	return &dup
}

// CreateJob stores a copy of the job.
func (s *MemoryStore) CreateJob(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = copyJob(job)
	return nil
}

// GetJob returns a copy of the job or ErrNotFound.
func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyJob(job), nil
}

// ListActive returns queued and processing jobs ordered by weight then age.
func (s *MemoryStore) ListActive(ctx context.Context) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []*Job
	for _, job := range s.jobs {
		if job.Status == StatusQueued || job.Status == StatusProcessing {
			active = append(active, copyJob(job))
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].PriorityWeight != active[j].PriorityWeight {
			return active[i].PriorityWeight > active[j].PriorityWeight
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

// MarkProcessing claims a queued job.
func (s *MemoryStore) MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return false, ErrNotFound
	}
	if job.Status != StatusQueued {
		return false, nil
	}
	job.Status = StatusProcessing
	t := startedAt
	job.StartedAt = &t
	return true, nil
}

// MarkTerminal finalizes a non-terminal job.
func (s *MemoryStore) MarkTerminal(ctx context.Context, jobID, status, errorCode, errorMessage string, completedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return false, ErrNotFound
	}
	if job.Terminal() {
		return false, nil
	}
	job.Status = status
	job.ErrorCode = errorCode
	job.ErrorMessage = errorMessage
	t := completedAt
	job.CompletedAt = &t
	if status == StatusCompleted {
		job.Progress = 100
	}
	return true, nil
}

// UpdateProgress records step completion on a job.
func (s *MemoryStore) UpdateProgress(ctx context.Context, jobID string, progress, completedSteps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Progress = progress
	job.CompletedSteps = completedSteps
	return nil
}

// InsertResult stores the result unless the pair already has one.
func (s *MemoryStore) InsertResult(ctx context.Context, result *Result) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := resultKey(result.QuestionnaireID, result.AnalysisType)
	if _, exists := s.results[key]; exists {
		return false, nil
	}
	dup := *result
	dup.Results = append([]byte(nil), result.Results...)
	s.results[key] = &dup
	return true, nil
}

// HasResult reports whether the pair already has a persisted result.
func (s *MemoryStore) HasResult(ctx context.Context, questionnaireID, analysisType string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.results[resultKey(questionnaireID, analysisType)]
	return exists, nil
}

// ListResults returns the questionnaire's results ordered by creation time.
func (s *MemoryStore) ListResults(ctx context.Context, questionnaireID string) ([]*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []*Result
	for _, result := range s.results {
		if result.QuestionnaireID == questionnaireID {
			dup := *result
			dup.Results = append([]byte(nil), result.Results...)
			list = append(list, &dup)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].AnalysisType < list[j].AnalysisType
	})
	return list, nil
}

// InsertEvent appends the event to the job's history.
func (s *MemoryStore) InsertEvent(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of the persisted events for a job, oldest first.
func (s *MemoryStore) Events(jobID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []Event
	for _, ev := range s.events {
		if ev.JobID == jobID {
			list = append(list, ev)
		}
	}
	return list
}

// FailStale fails processing jobs whose start predates the cutoff.
func (s *MemoryStore) FailStale(ctx context.Context, cutoff time.Time, errorCode, errorMessage string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reaped := 0
	for _, job := range s.jobs {
		if job.Status != StatusProcessing || job.StartedAt == nil || !job.StartedAt.Before(cutoff) {
			continue
		}
		job.Status = StatusFailed
		job.ErrorCode = errorCode
		job.ErrorMessage = errorMessage
		t := time.Now().UTC()
		job.CompletedAt = &t
		reaped++
	}
	return reaped, nil
}
