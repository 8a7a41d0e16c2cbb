// Package jobs orchestrates analysis jobs: a priority queue feeding a worker
// pool that runs the compliance gate, fans out over the requested analysis
// types, persists results, and streams lifecycle events to subscribers.
package jobs

import (
	"encoding/json"
	"time"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var priorityWeights = map[string]int{
	PriorityLow:    1,
	PriorityMedium: 5,
	PriorityHigh:   10,
	PriorityUrgent: 20,
}

// PriorityWeight maps a priority label to its queue weight. Higher weights
// are dequeued first.
func PriorityWeight(priority string) (int, bool) {
	w, ok := priorityWeights[priority]
	return w, ok
}

// Options carries per-job overrides. Zero values defer to engine defaults.
type Options struct {
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	Language       string `json:"language,omitempty"`
	MaxResponses   int    `json:"maxResponses,omitempty"`
	MaxTokens      int    `json:"maxTokens,omitempty"`
	MinClusterSize int    `json:"minClusterSize,omitempty"`
}

// Spec is a job submission request.
type Spec struct {
	QuestionnaireID string
	AnalysisTypes   []string
	Priority        string
	Options         Options
}

// Job is one orchestrated analysis run over a questionnaire.
type Job struct {
	ID              string
	QuestionnaireID string
	AnalysisTypes   []string
	Priority        string
	PriorityWeight  int
	Status          string
	Progress        int
	TotalSteps      int
	CompletedSteps  int
	Options         Options
	ErrorCode       string
	ErrorMessage    string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Result is one persisted analysis outcome. At most one row exists per
// (questionnaire, analysis type) pair.
type Result struct {
	ID              string
	QuestionnaireID string
	AnalysisType    string
	JobID           string
	Status          string
	Results         json.RawMessage
	Provider        string
	Model           string
	PromptVersion   string
	TokensUsed      int64
	ProcessingMs    int64
	ConfidenceScore float64
	ResponseCount   int
	CostEstimate    float64
	CreatedAt       time.Time
}

const (
	// EventChunk carries a fragment of streamed provider output.
	EventChunk = "chunk"
	// EventProgress marks a step transition within a job.
	EventProgress = "progress"
	// EventComplete marks a job reaching completed.
	EventComplete = "complete"
	// EventError reports a step or job failure.
	EventError = "error"
)

// Event is one entry in a job's lifecycle stream.
type Event struct {
	JobID        string         `json:"jobId"`
	AnalysisType string         `json:"analysisType,omitempty"`
	ChunkType    string         `json:"chunkType"`
	Payload      map[string]any `json:"payload,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}
