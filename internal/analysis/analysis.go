// Package analysis implements the five analysis types that turn
// sanitized questionnaire responses into stored findings. Each engine
// shares one contract: build a prompt, call the selected provider,
// parse and validate the reply, then post-process deterministically.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"survey-insights/internal/embedding"
	"survey-insights/internal/prompt"
	"survey-insights/internal/provider"
	"survey-insights/internal/shared/telemetry"
	"survey-insights/internal/vectorstore"
)

// Analysis type names as stored and requested.
const (
	TypeThematic        = "thematic"
	TypeClusters        = "clusters"
	TypeContradictions  = "contradictions"
	TypeInsights        = "insights"
	TypeRecommendations = "recommendations"
)

// Types lists the supported analysis types in canonical order.
var Types = []string{TypeThematic, TypeClusters, TypeContradictions, TypeInsights, TypeRecommendations}

// Supported reports whether analysisType names a known engine.
func Supported(analysisType string) bool {
	for _, t := range Types {
		if t == analysisType {
			return true
		}
	}
	return false
}

// ErrMalformedOutput marks provider output that stayed unparsable after
// the single extra attempt. Scoped to one analysis type.
var ErrMalformedOutput = errors.New("malformed llm output")

// ErrValidation marks sanitized input an engine cannot work with.
var ErrValidation = errors.New("invalid analysis input")

// Sanitized is one privacy-cleared response handed to the engines.
// RespondentID is already pseudonymous and Text already redacted.
type Sanitized struct {
	ID            string
	QuestionID    string
	Question      string
	GroupID       string
	GroupTitle    string
	GroupPosition int
	RespondentID  string
	Text          string
}

// Caller is the one provider operation engines depend on.
type Caller interface {
	Call(ctx context.Context, name string, req provider.Request, onChunk func(text string)) (provider.CallResult, error)
}

// Env bundles everything an engine needs for one run.
type Env struct {
	Provider       Caller
	Policy         provider.Policy
	Overrides      provider.Overrides
	PromptOptions  prompt.Options
	MaxTokens      int
	MinClusterSize int
	Embedder       embedding.Embedder
	Vectors        vectorstore.Store
	Prior          []prompt.PriorFinding
	OnChunk        func(text string)
}

// Output is one finished engine run, ready for persistence.
type Output struct {
	AnalysisType    string
	Results         json.RawMessage
	Provider        string
	Model           string
	PromptVersion   string
	TokensUsed      int64
	ProcessingMs    int64
	ConfidenceScore float64
	ResponseCount   int
	CostEstimate    float64
}

// Engine runs one analysis type over sanitized responses.
type Engine interface {
	Type() string
	Analyze(ctx context.Context, responses []Sanitized) (*Output, error)
}

// ForType returns the engine for one analysis type.
func ForType(analysisType string, env Env) (Engine, error) {
	switch analysisType {
	case TypeThematic:
		return NewThematic(env), nil
	case TypeClusters:
		return NewClusters(env), nil
	case TypeContradictions:
		return NewContradictions(env), nil
	case TypeInsights:
		return NewInsights(env), nil
	case TypeRecommendations:
		return NewRecommendations(env), nil
	default:
		return nil, fmt.Errorf("%w: unknown analysis type %q", ErrValidation, analysisType)
	}
}

// confidence scores how much to trust a result: 0.5 base, a bonus for
// sample size, and 0.2 when the type's richer structural fields came
// back populated. Capped at 1.0.
func confidence(responseCount int, structured bool) float64 {
	score := 0.5
	switch {
	case responseCount >= 100:
		score += 0.3
	case responseCount >= 50:
		score += 0.2
	case responseCount >= 20:
		score += 0.1
	}
	if structured {
		score += 0.2
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// extractJSON strips a markdown code fence if the model wrapped its
// reply in one despite the JSON-only instruction.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// callParsed sends one prompt and decodes the reply. A reply that fails
// to parse or validate gets exactly one fresh provider call; a second
// bad reply surfaces ErrMalformedOutput. The returned CallResult
// accumulates usage and cost across both attempts.
func callParsed(ctx context.Context, env Env, analysisType string, in prompt.Input, decode func(text string) error) (provider.CallResult, error) {
	system, user, err := prompt.Build(analysisType, in)
	if err != nil {
		return provider.CallResult{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	name, model := env.Policy.Select(analysisType, env.Overrides)
	req := provider.Request{System: system, User: user, Model: model, MaxTokens: env.MaxTokens}

	res, err := env.Provider.Call(ctx, name, req, env.OnChunk)
	if err != nil {
		return provider.CallResult{}, err
	}
	parseErr := decode(extractJSON(res.Text))
	if parseErr == nil {
		return res, nil
	}

	telemetry.Warn("unparsable provider output, retrying once", map[string]any{
		"analysis_type": analysisType,
		"provider":      name,
		"model":         model,
		"error":         parseErr.Error(),
	})
	retry, err := env.Provider.Call(ctx, name, req, env.OnChunk)
	if err != nil {
		return provider.CallResult{}, err
	}
	total := retry
	total.Usage.Add(res.Usage)
	total.CostEstimate += res.CostEstimate
	total.DurationMs += res.DurationMs
	if parseErr := decode(extractJSON(retry.Text)); parseErr != nil {
		return total, fmt.Errorf("%w: %v", ErrMalformedOutput, parseErr)
	}
	return total, nil
}

func promptResponses(responses []Sanitized) []prompt.Response {
	out := make([]prompt.Response, 0, len(responses))
	for _, r := range responses {
		out = append(out, prompt.Response{ID: r.ID, Question: r.Question, Text: r.Text})
	}
	return out
}

func marshalResults(payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis results: %w", err)
	}
	return raw, nil
}
