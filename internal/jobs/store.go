package jobs

import (
	"context"
	"time"
)

// Store defines persistence for jobs, analysis results, and job events.
type Store interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	// ListActive returns queued and processing jobs, highest weight first.
	ListActive(ctx context.Context) ([]*Job, error)
	// MarkProcessing claims a queued job. It reports false when the job was
	// no longer queued, which happens when it was cancelled while waiting.
	MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) (bool, error)
	// MarkTerminal moves a non-terminal job to a final status. It reports
	// false when the job had already reached a terminal status.
	MarkTerminal(ctx context.Context, jobID, status, errorCode, errorMessage string, completedAt time.Time) (bool, error)
	UpdateProgress(ctx context.Context, jobID string, progress, completedSteps int) error
	// InsertResult persists an analysis result. It reports false without
	// error when a row for the (questionnaire, analysis type) pair already
	// exists.
	InsertResult(ctx context.Context, result *Result) (bool, error)
	HasResult(ctx context.Context, questionnaireID, analysisType string) (bool, error)
	ListResults(ctx context.Context, questionnaireID string) ([]*Result, error)
	InsertEvent(ctx context.Context, ev Event) error
	// FailStale fails processing jobs that started before the cutoff and
	// returns how many were reaped.
	FailStale(ctx context.Context, cutoff time.Time, errorCode, errorMessage string) (int, error)
}
