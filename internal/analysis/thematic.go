package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"survey-insights/internal/prompt"
)

// Thematic extracts recurring themes with supporting quotes.
type Thematic struct {
	env Env
}

var _ Engine = (*Thematic)(nil)

func NewThematic(env Env) *Thematic { return &Thematic{env: env} }

func (t *Thematic) Type() string { return TypeThematic }

type theme struct {
	Name      string   `json:"name"`
	Frequency int      `json:"frequency"`
	Examples  []string `json:"examples,omitempty"`
	Sentiment string   `json:"sentiment,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
}

type thematicPayload struct {
	Themes  []theme `json:"themes"`
	Summary string  `json:"summary,omitempty"`
}

func (p *thematicPayload) validate() error {
	if p.Themes == nil {
		return fmt.Errorf("missing themes array")
	}
	for i, th := range p.Themes {
		if strings.TrimSpace(th.Name) == "" {
			return fmt.Errorf("theme %d: empty name", i)
		}
		if th.Frequency < 0 {
			return fmt.Errorf("theme %d: negative frequency %d", i, th.Frequency)
		}
	}
	return nil
}

func (t *Thematic) Analyze(ctx context.Context, responses []Sanitized) (*Output, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("%w: no responses to analyze", ErrValidation)
	}

	in := prompt.Input{Responses: promptResponses(responses), Options: t.env.PromptOptions}
	var payload thematicPayload
	res, err := callParsed(ctx, t.env, TypeThematic, in, func(text string) error {
		payload = thematicPayload{}
		if err := json.Unmarshal([]byte(text), &payload); err != nil {
			return err
		}
		return payload.validate()
	})
	if err != nil {
		return nil, err
	}

	results, err := marshalResults(payload)
	if err != nil {
		return nil, err
	}
	return &Output{
		AnalysisType:    TypeThematic,
		Results:         results,
		Provider:        res.Provider,
		Model:           res.Model,
		PromptVersion:   prompt.Version,
		TokensUsed:      res.Usage.InputTokens + res.Usage.OutputTokens,
		ProcessingMs:    res.DurationMs,
		ConfidenceScore: confidence(len(responses), strings.TrimSpace(payload.Summary) != ""),
		ResponseCount:   len(responses),
		CostEstimate:    res.CostEstimate,
	}, nil
}
