package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGStore implements Store using Postgres.
type PGStore struct {
	DB *sql.DB
}

var _ Store = (*PGStore)(nil)

const jobColumns = `id, questionnaire_id, analysis_types, priority, priority_weight, status,
       progress, total_steps, completed_steps, options, error_code, error_message,
       created_at, started_at, completed_at`

// CreateJob inserts a new job row.
func (s *PGStore) CreateJob(ctx context.Context, job *Job) error {
	const query = `
INSERT INTO analysis_jobs (
	id, questionnaire_id, analysis_types, priority, priority_weight, status,
	progress, total_steps, completed_steps, options, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	types, err := json.Marshal(job.AnalysisTypes)
	if err != nil {
		return err
	}
	options, err := json.Marshal(job.Options)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, query,
		job.ID,
		job.QuestionnaireID,
		types,
		job.Priority,
		job.PriorityWeight,
		job.Status,
		job.Progress,
		job.TotalSteps,
		job.CompletedSteps,
		options,
		job.CreatedAt,
	)
	return err
}

// GetJob returns a job by ID.
func (s *PGStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	const query = `
SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE id = $1
LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListActive returns queued and processing jobs, highest weight first.
func (s *PGStore) ListActive(ctx context.Context) ([]*Job, error) {
	const query = `
SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE status IN ('queued', 'processing')
ORDER BY priority_weight DESC, created_at ASC`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var active []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		active = append(active, job)
	}
	return active, rows.Err()
}

// MarkProcessing claims a queued job. The status guard loses the race to a
// concurrent cancel, which is the intended outcome.
func (s *PGStore) MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) (bool, error) {
	const query = `
UPDATE analysis_jobs
SET status = $2, started_at = $3
WHERE id = $1 AND status = 'queued'`
	res, err := s.DB.ExecContext(ctx, query, jobID, StatusProcessing, startedAt)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkTerminal finalizes a non-terminal job.
func (s *PGStore) MarkTerminal(ctx context.Context, jobID, status, errorCode, errorMessage string, completedAt time.Time) (bool, error) {
	const query = `
UPDATE analysis_jobs
SET status = $2,
    error_code = NULLIF($3, ''),
    error_message = NULLIF($4, ''),
    completed_at = $5,
    progress = CASE WHEN $2 = 'completed' THEN 100 ELSE progress END
WHERE id = $1 AND status IN ('queued', 'processing')`
	res, err := s.DB.ExecContext(ctx, query, jobID, status, errorCode, errorMessage, completedAt)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateProgress records step completion on a job.
func (s *PGStore) UpdateProgress(ctx context.Context, jobID string, progress, completedSteps int) error {
	const query = `
UPDATE analysis_jobs
SET progress = $2, completed_steps = $3
WHERE id = $1`
	_, err := s.DB.ExecContext(ctx, query, jobID, progress, completedSteps)
	return err
}

// InsertResult persists a result unless the pair already has one.
func (s *PGStore) InsertResult(ctx context.Context, result *Result) (bool, error) {
	const query = `
INSERT INTO analysis_results (
	id, questionnaire_id, analysis_type, job_id, status, results, provider, model,
	prompt_version, tokens_used, processing_time_ms, confidence_score, response_count,
	cost_estimate, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (questionnaire_id, analysis_type) DO NOTHING`
	res, err := s.DB.ExecContext(ctx, query,
		result.ID,
		result.QuestionnaireID,
		result.AnalysisType,
		result.JobID,
		result.Status,
		[]byte(result.Results),
		result.Provider,
		result.Model,
		result.PromptVersion,
		result.TokensUsed,
		result.ProcessingMs,
		result.ConfidenceScore,
		result.ResponseCount,
		result.CostEstimate,
		result.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// HasResult reports whether a result exists for the pair.
func (s *PGStore) HasResult(ctx context.Context, questionnaireID, analysisType string) (bool, error) {
	const query = `
SELECT 1 FROM analysis_results
WHERE questionnaire_id = $1 AND analysis_type = $2
LIMIT 1`
	var one int
	err := s.DB.QueryRowContext(ctx, query, questionnaireID, analysisType).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListResults returns the questionnaire's results ordered by creation time.
func (s *PGStore) ListResults(ctx context.Context, questionnaireID string) ([]*Result, error) {
	const query = `
SELECT id, questionnaire_id, analysis_type, job_id, status, results, provider, model,
       prompt_version, tokens_used, processing_time_ms, confidence_score, response_count,
       cost_estimate, created_at
FROM analysis_results
WHERE questionnaire_id = $1
ORDER BY created_at ASC, analysis_type ASC`
	rows, err := s.DB.QueryContext(ctx, query, questionnaireID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Result
	for rows.Next() {
		var r Result
		var payload []byte
		err := rows.Scan(
			&r.ID,
			&r.QuestionnaireID,
			&r.AnalysisType,
			&r.JobID,
			&r.Status,
			&payload,
			&r.Provider,
			&r.Model,
			&r.PromptVersion,
			&r.TokensUsed,
			&r.ProcessingMs,
			&r.ConfidenceScore,
			&r.ResponseCount,
			&r.CostEstimate,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		r.Results = json.RawMessage(payload)
		list = append(list, &r)
	}
	return list, rows.Err()
}

// InsertEvent appends one event to the job's persisted history.
func (s *PGStore) InsertEvent(ctx context.Context, ev Event) error {
	const query = `
INSERT INTO job_events (job_id, analysis_type, chunk_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5)`
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, query, ev.JobID, ev.AnalysisType, ev.ChunkType, payload, ev.Timestamp)
	return err
}

// FailStale fails processing jobs that started before the cutoff.
func (s *PGStore) FailStale(ctx context.Context, cutoff time.Time, errorCode, errorMessage string) (int, error) {
	const query = `
UPDATE analysis_jobs
SET status = 'failed', error_code = $2, error_message = $3, completed_at = now()
WHERE status = 'processing' AND started_at < $1`
	res, err := s.DB.ExecContext(ctx, query, cutoff, errorCode, errorMessage)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var job Job
	var types []byte
	var options []byte
	var errorCode sql.NullString
	var errorMessage sql.NullString
	var startedAt sql.NullTime
	var completedAt sql.NullTime
	err := row.Scan(
		&job.ID,
		&job.QuestionnaireID,
		&types,
		&job.Priority,
		&job.PriorityWeight,
		&job.Status,
		&job.Progress,
		&job.TotalSteps,
		&job.CompletedSteps,
		&options,
		&errorCode,
		&errorMessage,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(types) > 0 {
		if err := json.Unmarshal(types, &job.AnalysisTypes); err != nil {
			return nil, err
		}
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &job.Options); err != nil {
			return nil, err
		}
	}
	if errorCode.Valid {
		job.ErrorCode = errorCode.String
	}
	if errorMessage.Valid {
		job.ErrorMessage = errorMessage.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}
