package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"survey-insights/internal/analysis"
	"survey-insights/internal/anonymize"
	"survey-insights/internal/consent"
	"survey-insights/internal/embedding"
	"survey-insights/internal/prompt"
	"survey-insights/internal/provider"
	"survey-insights/internal/responses"
	"survey-insights/internal/shared/metrics"
	"survey-insights/internal/shared/telemetry"
	"survey-insights/internal/vectorstore"
)

const (
	defaultWorkers       = 3
	defaultQueueCapacity = 64
	defaultKAnonymity    = 2
)

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Store     Store
	Responses responses.Repo
	Consent   consent.Registry
	Gate      *anonymize.Gate
	Caller    analysis.Caller
	Policy    provider.Policy
	Embedder  embedding.Embedder
	Vectors   vectorstore.Store
}

// Config tunes the orchestrator. Zero values take the defaults.
type Config struct {
	Workers        int
	QueueCapacity  int
	EventBuffer    int
	AnonymizeLevel anonymize.Level
	KAnonymity     int
	MinClusterSize int
	ResponseCap    int
	MaxTokens      int
}

// Orchestrator runs analysis jobs. Construct with New, then Start to launch
// the worker pool and Shutdown to drain it.
type Orchestrator struct {
	deps  Deps
	cfg   Config
	queue *Queue
	bus   *Bus

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc

	now func() time.Time
}

// New builds an orchestrator. It does not start any workers.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	if cfg.KAnonymity <= 0 {
		cfg.KAnonymity = defaultKAnonymity
	}
	if cfg.AnonymizeLevel == "" {
		cfg.AnonymizeLevel = anonymize.LevelFull
	}
	return &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		queue:   NewQueue(cfg.QueueCapacity),
		bus:     NewBus(cfg.EventBuffer),
		cancels: make(map[string]context.CancelFunc),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start requeues jobs left queued by a previous run and launches the worker
// pool.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.baseCtx, o.stop = context.WithCancel(context.Background())

	active, err := o.deps.Store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("requeue scan: %w", err)
	}
	requeued := 0
	for _, job := range active {
		if job.Status != StatusQueued {
			continue
		}
		if err := o.queue.Push(job.ID, job.PriorityWeight); err != nil {
			return err
		}
		requeued++
	}

	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(i + 1)
	}
	telemetry.Info("jobs.started", map[string]any{
		"workers":  o.cfg.Workers,
		"requeued": requeued,
	})
	return nil
}

// Shutdown closes the queue and waits for in-flight jobs. If the context
// expires first, in-flight work is cancelled and the wait resumes until
// every worker has exited.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.queue.Close()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		telemetry.Info("jobs.stopped", map[string]any{"dropped_events": o.bus.Dropped()})
		return nil
	case <-ctx.Done():
		if o.stop != nil {
			o.stop()
		}
		<-done
		telemetry.Warn("jobs.stopped_forced", map[string]any{"dropped_events": o.bus.Dropped()})
		return ctx.Err()
	}
}

// Submit validates the spec, persists a queued job, and enqueues it.
func (o *Orchestrator) Submit(ctx context.Context, spec Spec) (*Job, error) {
	if spec.QuestionnaireID == "" {
		return nil, fmt.Errorf("%w: questionnaireId is required", ErrInvalidSpec)
	}
	if len(spec.AnalysisTypes) == 0 {
		return nil, fmt.Errorf("%w: at least one analysis type is required", ErrInvalidSpec)
	}
	var types []string
	seen := make(map[string]bool)
	for _, analysisType := range spec.AnalysisTypes {
		if !analysis.Supported(analysisType) {
			return nil, fmt.Errorf("%w: unknown analysis type %q", ErrInvalidSpec, analysisType)
		}
		if seen[analysisType] {
			continue
		}
		seen[analysisType] = true
		types = append(types, analysisType)
	}

	priority := spec.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	weight, ok := PriorityWeight(priority)
	if !ok {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidSpec, spec.Priority)
	}

	if o.queue.Full() {
		return nil, ErrQueueFull
	}

	job := &Job{
		ID:              uuid.NewString(),
		QuestionnaireID: spec.QuestionnaireID,
		AnalysisTypes:   types,
		Priority:        priority,
		PriorityWeight:  weight,
		Status:          StatusQueued,
		TotalSteps:      len(types),
		Options:         spec.Options,
		CreatedAt:       o.now(),
	}
	if err := o.deps.Store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := o.queue.Push(job.ID, job.PriorityWeight); err != nil {
		return nil, err
	}
	metrics.IncJobSubmitted()
	telemetry.Info("jobs.submitted", map[string]any{
		"job_id":           job.ID,
		"questionnaire_id": job.QuestionnaireID,
		"analysis_types":   job.AnalysisTypes,
		"priority":         job.Priority,
	})
	return job, nil
}

// Cancel requests cooperative cancellation of a job.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.deps.Store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return fmt.Errorf("job %s already %s", jobID, job.Status)
	}

	if job.Status == StatusQueued {
		marked, err := o.deps.Store.MarkTerminal(ctx, jobID, StatusCancelled, ErrorCodeCancelled, "cancelled before start", o.now())
		if err != nil {
			return err
		}
		if marked {
			metrics.IncJobCancelled()
			o.publish(Event{
				JobID:     jobID,
				ChunkType: EventError,
				Payload:   map[string]any{"code": ErrorCodeCancelled, "status": StatusCancelled},
				Timestamp: o.now(),
			})
			telemetry.Info("jobs.status", map[string]any{
				"job_id":            jobID,
				"status_transition": "queued->cancelled",
			})
			return nil
		}
		// A worker claimed the job between our read and the update; fall
		// through and signal it instead.
	}

	o.cancelMu.Lock()
	cancel, ok := o.cancels[jobID]
	o.cancelMu.Unlock()
	if ok {
		cancel()
		return nil
	}

	// Processing with no local worker, e.g. left over from a previous run.
	marked, err := o.deps.Store.MarkTerminal(ctx, jobID, StatusCancelled, ErrorCodeCancelled, "cancelled", o.now())
	if err != nil {
		return err
	}
	if marked {
		metrics.IncJobCancelled()
		o.publish(Event{
			JobID:     jobID,
			ChunkType: EventError,
			Payload:   map[string]any{"code": ErrorCodeCancelled, "status": StatusCancelled},
			Timestamp: o.now(),
		})
	}
	return nil
}

// GetStatus returns the job's current state.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*Job, error) {
	return o.deps.Store.GetJob(ctx, jobID)
}

// ListActive returns queued and processing jobs, highest priority first.
func (o *Orchestrator) ListActive(ctx context.Context) ([]*Job, error) {
	return o.deps.Store.ListActive(ctx)
}

// Subscribe registers an event stream subscriber.
func (o *Orchestrator) Subscribe() (string, <-chan Event) {
	return o.bus.Subscribe()
}

// Unsubscribe removes a subscriber and closes its channel.
func (o *Orchestrator) Unsubscribe(id string) {
	o.bus.Unsubscribe(id)
}

func (o *Orchestrator) worker(id int) {
	defer o.wg.Done()
	for {
		jobID, ok := o.queue.Pop()
		if !ok {
			return
		}
		telemetry.Debug("jobs.dequeued", map[string]any{"worker_id": id, "job_id": jobID})
		o.process(jobID)
	}
}

// process runs one job end to end on the calling worker goroutine.
func (o *Orchestrator) process(jobID string) {
	jobCtx, cancel := context.WithCancel(o.baseCtx)
	defer cancel()
	o.registerCancel(jobID, cancel)
	defer o.unregisterCancel(jobID)

	job, err := o.deps.Store.GetJob(jobCtx, jobID)
	if err != nil {
		telemetry.Error("jobs.load_failed", map[string]any{"job_id": jobID, "error": err.Error()})
		return
	}
	claimed, err := o.deps.Store.MarkProcessing(jobCtx, jobID, o.now())
	if err != nil {
		telemetry.Error("jobs.claim_failed", map[string]any{"job_id": jobID, "error": err.Error()})
		return
	}
	if !claimed {
		// Cancelled while queued.
		return
	}
	startedAt := o.now()
	telemetry.Info("jobs.status", map[string]any{
		"job_id":            job.ID,
		"questionnaire_id":  job.QuestionnaireID,
		"status_transition": "queued->processing",
	})
	o.publish(Event{
		JobID:     job.ID,
		ChunkType: EventProgress,
		Payload:   map[string]any{"status": StatusProcessing, "progress": 0},
		Timestamp: o.now(),
	})

	sanitized, err := o.prepare(jobCtx, job)
	if err != nil {
		if jobCtx.Err() != nil {
			o.finishCancelled(job)
			return
		}
		o.finishFailed(job, err)
		return
	}

	total := len(job.AnalysisTypes)
	done := 0
	for _, analysisType := range job.AnalysisTypes {
		if jobCtx.Err() != nil {
			o.finishCancelled(job)
			return
		}
		o.runStep(jobCtx, job, analysisType, sanitized)
		if jobCtx.Err() != nil {
			o.finishCancelled(job)
			return
		}
		done++
		progress := int(math.Round(100 * float64(done) / float64(total)))
		if err := o.deps.Store.UpdateProgress(jobCtx, job.ID, progress, done); err != nil {
			telemetry.Warn("jobs.progress_update_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		}
		o.publish(Event{
			JobID:        job.ID,
			AnalysisType: analysisType,
			ChunkType:    EventProgress,
			Payload: map[string]any{
				"progress":       progress,
				"completedSteps": done,
				"totalSteps":     total,
			},
			Timestamp: o.now(),
		})
	}
	o.finishCompleted(job, startedAt)
}

// prepare runs the compliance gate and builds the sanitized input set. Any
// error here fails the whole job before a single provider call.
func (o *Orchestrator) prepare(ctx context.Context, job *Job) ([]analysis.Sanitized, error) {
	granted, err := o.deps.Consent.HasGrantedConsent(ctx, job.QuestionnaireID, consent.TypeAnalysis)
	if err != nil {
		return nil, fmt.Errorf("consent lookup: %w", err)
	}
	if !granted {
		return nil, fmt.Errorf("%w: no granted analysis consent for questionnaire %s", ErrCompliance, job.QuestionnaireID)
	}

	questionnaire, err := o.deps.Responses.GetQuestionnaire(ctx, job.QuestionnaireID)
	if err != nil {
		return nil, fmt.Errorf("questionnaire load: %w", err)
	}
	raw, err := o.deps.Responses.ListResponses(ctx, job.QuestionnaireID)
	if err != nil {
		return nil, fmt.Errorf("response load: %w", err)
	}

	type questionMeta struct {
		prompt        string
		groupID       string
		groupTitle    string
		groupPosition int
	}
	meta := make(map[string]questionMeta)
	for _, group := range questionnaire.Groups {
		for _, question := range group.Questions {
			meta[question.ID] = questionMeta{
				prompt:        question.Prompt,
				groupID:       group.ID,
				groupTitle:    group.Title,
				groupPosition: group.Position,
			}
		}
	}

	sanitized := make([]analysis.Sanitized, 0, len(raw))
	texts := make([]string, 0, len(raw))
	for _, response := range raw {
		clean := o.deps.Gate.AnonymizeResponse(anonymize.Input{
			ID:         response.ID,
			UserID:     response.RespondentID,
			QuestionID: response.QuestionID,
			Text:       response.AnswerText,
		}, o.cfg.AnonymizeLevel)
		m := meta[response.QuestionID]
		sanitized = append(sanitized, analysis.Sanitized{
			ID:            clean.ID,
			QuestionID:    response.QuestionID,
			Question:      m.prompt,
			GroupID:       m.groupID,
			GroupTitle:    m.groupTitle,
			GroupPosition: m.groupPosition,
			RespondentID:  clean.UserID,
			Text:          clean.Text,
		})
		texts = append(texts, clean.Text)
	}

	if !anonymize.VerifyKAnonymity(texts, o.cfg.KAnonymity) {
		return nil, fmt.Errorf("%w: response set does not satisfy k-anonymity (k=%d)", ErrCompliance, o.cfg.KAnonymity)
	}
	return sanitized, nil
}

// runStep executes one analysis type. Failures are scoped to the step; the
// job carries on. A cancelled context leaves no trace for this step.
func (o *Orchestrator) runStep(ctx context.Context, job *Job, analysisType string, sanitized []analysis.Sanitized) {
	exists, err := o.deps.Store.HasResult(ctx, job.QuestionnaireID, analysisType)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.stepFailed(job, analysisType, err)
		return
	}
	if exists {
		telemetry.Info("jobs.step_skipped", map[string]any{
			"job_id":           job.ID,
			"questionnaire_id": job.QuestionnaireID,
			"analysis_type":    analysisType,
			"reason":           "result exists",
		})
		return
	}

	engine, err := analysis.ForType(analysisType, o.envFor(job, analysisType))
	if err != nil {
		o.stepFailed(job, analysisType, err)
		return
	}
	out, err := engine.Analyze(ctx, sanitized)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.stepFailed(job, analysisType, err)
		return
	}

	result := &Result{
		ID:              uuid.NewString(),
		QuestionnaireID: job.QuestionnaireID,
		AnalysisType:    analysisType,
		JobID:           job.ID,
		Status:          StatusCompleted,
		Results:         out.Results,
		Provider:        out.Provider,
		Model:           out.Model,
		PromptVersion:   out.PromptVersion,
		TokensUsed:      out.TokensUsed,
		ProcessingMs:    out.ProcessingMs,
		ConfidenceScore: out.ConfidenceScore,
		ResponseCount:   out.ResponseCount,
		CostEstimate:    out.CostEstimate,
		CreatedAt:       o.now(),
	}
	inserted, err := o.deps.Store.InsertResult(ctx, result)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.stepFailed(job, analysisType, err)
		return
	}
	if !inserted {
		telemetry.Info("jobs.step_skipped", map[string]any{
			"job_id":        job.ID,
			"analysis_type": analysisType,
			"reason":        "duplicate result",
		})
		return
	}
	metrics.IncAnalysisCompleted()
	telemetry.Info("jobs.step_completed", map[string]any{
		"job_id":        job.ID,
		"analysis_type": analysisType,
		"confidence":    out.ConfidenceScore,
		"tokens_used":   out.TokensUsed,
		"cost_estimate": out.CostEstimate,
	})
}

func (o *Orchestrator) envFor(job *Job, analysisType string) analysis.Env {
	minSize := job.Options.MinClusterSize
	if minSize <= 0 {
		minSize = o.cfg.MinClusterSize
	}
	responseCap := job.Options.MaxResponses
	if responseCap <= 0 {
		responseCap = o.cfg.ResponseCap
	}
	maxTokens := job.Options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.cfg.MaxTokens
	}
	env := analysis.Env{
		Provider: o.deps.Caller,
		Policy:   o.deps.Policy,
		Overrides: provider.Overrides{
			Provider: job.Options.Provider,
			Model:    job.Options.Model,
		},
		PromptOptions: prompt.Options{
			Language:       job.Options.Language,
			ResponseCap:    responseCap,
			MinClusterSize: minSize,
		},
		MaxTokens:      maxTokens,
		MinClusterSize: minSize,
		Embedder:       o.deps.Embedder,
		Vectors:        o.deps.Vectors,
		OnChunk: func(text string) {
			o.publish(Event{
				JobID:        job.ID,
				AnalysisType: analysisType,
				ChunkType:    EventChunk,
				Payload:      map[string]any{"text": text},
				Timestamp:    o.now(),
			})
		},
	}
	if analysisType == analysis.TypeRecommendations {
		env.Prior = o.priorFindings(job.QuestionnaireID)
	}
	return env
}

// priorFindings summarizes already-persisted results so the recommendations
// prompt can build on them. Lookup failures degrade to no prior context.
func (o *Orchestrator) priorFindings(questionnaireID string) []prompt.PriorFinding {
	results, err := o.deps.Store.ListResults(context.Background(), questionnaireID)
	if err != nil {
		telemetry.Warn("jobs.prior_lookup_failed", map[string]any{
			"questionnaire_id": questionnaireID,
			"error":            err.Error(),
		})
		return nil
	}
	var findings []prompt.PriorFinding
	for _, result := range results {
		summary := summarizeResult(result)
		if summary == "" {
			continue
		}
		findings = append(findings, prompt.PriorFinding{
			AnalysisType: result.AnalysisType,
			Summary:      summary,
		})
	}
	return findings
}

// summarizeResult produces a one-line digest of a stored payload: its
// summary field when present, otherwise a count of its top-level findings.
func summarizeResult(result *Result) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(result.Results, &payload); err != nil {
		return ""
	}
	if raw, ok := payload["summary"]; ok {
		var summary string
		if json.Unmarshal(raw, &summary) == nil && summary != "" {
			return summary
		}
	}
	for _, key := range []string{"themes", "clusters", "contradictions", "insights", "recommendations"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			continue
		}
		return fmt.Sprintf("%d %s identified", len(items), key)
	}
	return ""
}

func (o *Orchestrator) stepFailed(job *Job, analysisType string, err error) {
	code := classifyFailure(err)
	metrics.IncAnalysisFailed()
	telemetry.Warn("jobs.step_failed", map[string]any{
		"job_id":           job.ID,
		"questionnaire_id": job.QuestionnaireID,
		"analysis_type":    analysisType,
		"error_code":       code,
		"error":            sanitizeError(err),
	})
	o.publish(Event{
		JobID:        job.ID,
		AnalysisType: analysisType,
		ChunkType:    EventError,
		Payload:      map[string]any{"code": code, "message": sanitizeError(err)},
		Timestamp:    o.now(),
	})
}

// Terminal writes run on a background context so a cancelled or expired job
// context cannot block recording the final state.
func (o *Orchestrator) finishCompleted(job *Job, startedAt time.Time) {
	marked, err := o.deps.Store.MarkTerminal(context.Background(), job.ID, StatusCompleted, "", "", o.now())
	if err != nil {
		telemetry.Error("jobs.finalize_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		return
	}
	if !marked {
		return
	}
	metrics.IncJobCompleted()
	metrics.ObserveJobDurationMs(float64(o.now().Sub(startedAt).Milliseconds()))
	telemetry.Info("jobs.status", map[string]any{
		"job_id":            job.ID,
		"questionnaire_id":  job.QuestionnaireID,
		"status_transition": "processing->completed",
	})
	o.publish(Event{
		JobID:     job.ID,
		ChunkType: EventComplete,
		Payload:   map[string]any{"status": StatusCompleted, "progress": 100},
		Timestamp: o.now(),
	})
}

func (o *Orchestrator) finishFailed(job *Job, cause error) {
	code := classifyFailure(cause)
	message := sanitizeError(cause)
	marked, err := o.deps.Store.MarkTerminal(context.Background(), job.ID, StatusFailed, code, message, o.now())
	if err != nil {
		telemetry.Error("jobs.finalize_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		return
	}
	if !marked {
		return
	}
	metrics.IncJobFailed()
	if code == ErrorCodeCompliance {
		metrics.IncComplianceRejection()
	}
	telemetry.Warn("jobs.status", map[string]any{
		"job_id":            job.ID,
		"questionnaire_id":  job.QuestionnaireID,
		"status_transition": "processing->failed",
		"error_code":        code,
		"error":             message,
	})
	o.publish(Event{
		JobID:     job.ID,
		ChunkType: EventError,
		Payload:   map[string]any{"code": code, "message": message, "status": StatusFailed},
		Timestamp: o.now(),
	})
}

func (o *Orchestrator) finishCancelled(job *Job) {
	marked, err := o.deps.Store.MarkTerminal(context.Background(), job.ID, StatusCancelled, ErrorCodeCancelled, "cancelled by request", o.now())
	if err != nil {
		telemetry.Error("jobs.finalize_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		return
	}
	if !marked {
		return
	}
	metrics.IncJobCancelled()
	telemetry.Info("jobs.status", map[string]any{
		"job_id":            job.ID,
		"questionnaire_id":  job.QuestionnaireID,
		"status_transition": "processing->cancelled",
	})
	o.publish(Event{
		JobID:     job.ID,
		ChunkType: EventError,
		Payload:   map[string]any{"code": ErrorCodeCancelled, "status": StatusCancelled},
		Timestamp: o.now(),
	})
}

// publish streams the event to subscribers and persists everything except
// high-volume chunk fragments.
func (o *Orchestrator) publish(ev Event) {
	o.bus.Publish(ev)
	if ev.ChunkType == EventChunk {
		return
	}
	if err := o.deps.Store.InsertEvent(context.Background(), ev); err != nil {
		telemetry.Warn("jobs.event_persist_failed", map[string]any{
			"job_id":     ev.JobID,
			"chunk_type": ev.ChunkType,
			"error":      err.Error(),
		})
	}
}

func (o *Orchestrator) registerCancel(jobID string, cancel context.CancelFunc) {
	o.cancelMu.Lock()
	o.cancels[jobID] = cancel
	o.cancelMu.Unlock()
}

func (o *Orchestrator) unregisterCancel(jobID string) {
	o.cancelMu.Lock()
	delete(o.cancels, jobID)
	o.cancelMu.Unlock()
}
