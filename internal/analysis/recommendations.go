package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"survey-insights/internal/prompt"
)

// Recommendations turns findings into prioritized actions. Prior
// analysis results for the same questionnaire feed the prompt as
// context; feasibility, complexity, and ROI are scored locally.
type Recommendations struct {
	env Env
}

var _ Engine = (*Recommendations)(nil)

func NewRecommendations(env Env) *Recommendations { return &Recommendations{env: env} }

func (r *Recommendations) Type() string { return TypeRecommendations }

type recommendation struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Priority          string   `json:"priority"`
	Impact            float64  `json:"impact"`
	Cost              string   `json:"cost"`
	Dependencies      []string `json:"dependencies,omitempty"`
	RequiredExpertise []string `json:"requiredExpertise,omitempty"`
	Timeframe         string   `json:"timeframe,omitempty"`

	FeasibilityScore         float64 `json:"feasibilityScore"`
	ImplementationComplexity string  `json:"implementationComplexity"`
	EstimatedROI             float64 `json:"estimatedROI"`
}

type recommendationsReply struct {
	Recommendations []recommendation `json:"recommendations"`
}

func (r *recommendationsReply) validate() error {
	if r.Recommendations == nil {
		return fmt.Errorf("missing recommendations array")
	}
	for i := range r.Recommendations {
		rec := &r.Recommendations[i]
		if strings.TrimSpace(rec.Title) == "" {
			return fmt.Errorf("recommendation %d: empty title", i)
		}
		rec.Priority = strings.ToLower(strings.TrimSpace(rec.Priority))
		switch rec.Priority {
		case "low", "medium", "high", "urgent":
		default:
			return fmt.Errorf("recommendation %d: priority %q", i, rec.Priority)
		}
		rec.Cost = strings.ToLower(strings.TrimSpace(rec.Cost))
		switch rec.Cost {
		case "low", "medium", "high":
		default:
			return fmt.Errorf("recommendation %d: cost %q", i, rec.Cost)
		}
		if rec.Impact < 0 {
			rec.Impact = 0
		}
		if rec.Impact > 1 {
			rec.Impact = 1
		}
	}
	return nil
}

type recommendationsPayload struct {
	Recommendations []recommendation `json:"recommendations"`
}

func (r *Recommendations) Analyze(ctx context.Context, responses []Sanitized) (*Output, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("%w: no responses to analyze", ErrValidation)
	}

	in := prompt.Input{
		Responses: promptResponses(responses),
		Prior:     r.env.Prior,
		Options:   r.env.PromptOptions,
	}
	var reply recommendationsReply
	res, err := callParsed(ctx, r.env, TypeRecommendations, in, func(text string) error {
		reply = recommendationsReply{}
		if err := json.Unmarshal([]byte(text), &reply); err != nil {
			return err
		}
		return reply.validate()
	})
	if err != nil {
		return nil, err
	}

	scored := scoreRecommendations(reply.Recommendations)
	results, err := marshalResults(recommendationsPayload{Recommendations: scored})
	if err != nil {
		return nil, err
	}

	structured := len(scored) > 0
	for _, rec := range scored {
		if strings.TrimSpace(rec.Timeframe) == "" {
			structured = false
			break
		}
	}
	return &Output{
		AnalysisType:    TypeRecommendations,
		Results:         results,
		Provider:        res.Provider,
		Model:           res.Model,
		PromptVersion:   prompt.Version,
		TokensUsed:      res.Usage.InputTokens + res.Usage.OutputTokens,
		ProcessingMs:    res.DurationMs,
		ConfidenceScore: confidence(len(responses), structured),
		ResponseCount:   len(responses),
		CostEstimate:    res.CostEstimate,
	}, nil
}

var priorityRank = map[string]int{"low": 1, "medium": 2, "high": 3, "urgent": 4}

var timeBoundPattern = regexp.MustCompile(`(?i)\d|week|month|quarter|year|day|immediately|asap`)

// scoreRecommendations post-scores and orders the provider's proposals:
// feasibility from cost tier, dependency count, and priority; complexity
// from a four-point rubric; ROI from impact discounted by cost.
func scoreRecommendations(recs []recommendation) []recommendation {
	scored := make([]recommendation, len(recs))
	copy(scored, recs)
	for i := range scored {
		rec := &scored[i]
		cost := normalizedCost(rec.Cost)

		feasibility := 1.0 - 0.3*cost - 0.1*float64(min(len(rec.Dependencies), 3))
		if rec.Priority == "high" || rec.Priority == "urgent" {
			feasibility += 0.1
		}
		rec.FeasibilityScore = clamp01(feasibility)

		points := 0
		if len(rec.Dependencies) > 0 {
			points++
		}
		if rec.Cost == "high" {
			points++
		}
		if len(rec.RequiredExpertise) > 0 {
			points++
		}
		if timeBoundPattern.MatchString(rec.Timeframe) {
			points++
		}
		switch {
		case points >= 3:
			rec.ImplementationComplexity = "high"
		case points == 2:
			rec.ImplementationComplexity = "medium"
		default:
			rec.ImplementationComplexity = "low"
		}

		rec.EstimatedROI = rec.Impact * (1 - 0.5*cost)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if priorityRank[scored[i].Priority] != priorityRank[scored[j].Priority] {
			return priorityRank[scored[i].Priority] > priorityRank[scored[j].Priority]
		}
		return scored[i].FeasibilityScore > scored[j].FeasibilityScore
	})
	return scored
}

func normalizedCost(tier string) float64 {
	switch tier {
	case "low":
		return 0.2
	case "high":
		return 1.0
	default:
		return 0.5
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
