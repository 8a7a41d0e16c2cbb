package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"survey-insights/internal/prompt"
)

func TestThematicHappyPath(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{
		"themes": [
			{"name": "workload", "frequency": 4, "examples": ["too much overtime"], "sentiment": "negative", "keywords": ["overtime"]},
			{"name": "team spirit", "frequency": 2, "examples": ["great colleagues"], "sentiment": "positive", "keywords": ["colleagues"]}
		],
		"summary": "Workload concerns dominate but morale holds."
	}`}}
	env := testEnv(fake)

	out, err := NewThematic(env).Analyze(context.Background(), simpleResponses(5))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.AnalysisType != TypeThematic {
		t.Fatalf("unexpected type %s", out.AnalysisType)
	}
	if out.Provider != "anthropic" || out.Model == "" {
		t.Fatalf("missing attribution: %s/%s", out.Provider, out.Model)
	}
	if out.PromptVersion != prompt.Version {
		t.Fatalf("unexpected prompt version %s", out.PromptVersion)
	}
	if out.ResponseCount != 5 {
		t.Fatalf("unexpected response count %d", out.ResponseCount)
	}
	// 5 responses, summary present: 0.5 + 0.2 structure bonus.
	if out.ConfidenceScore != 0.7 {
		t.Fatalf("unexpected confidence %v", out.ConfidenceScore)
	}

	var payload thematicPayload
	if err := json.Unmarshal(out.Results, &payload); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(payload.Themes) != 2 || payload.Themes[0].Name != "workload" {
		t.Fatalf("unexpected themes %+v", payload.Themes)
	}
}

func TestThematicNoSummaryNoStructureBonus(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{"themes": [{"name": "pay", "frequency": 1}]}`}}
	env := testEnv(fake)

	out, err := NewThematic(env).Analyze(context.Background(), simpleResponses(5))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.ConfidenceScore != 0.5 {
		t.Fatalf("expected base confidence, got %v", out.ConfidenceScore)
	}
}

func TestThematicEmptyInputIsValidationError(t *testing.T) {
	fake := &fakeCaller{}
	_, err := NewThematic(testEnv(fake)).Analyze(context.Background(), nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("no provider call expected, got %d", fake.calls)
	}
}

func TestThematicMissingThemesKeyIsMalformed(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{"summary": "no themes key"}`}}
	_, err := NewThematic(testEnv(fake)).Analyze(context.Background(), simpleResponses(3))
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("expected retry before giving up, got %d calls", fake.calls)
	}
}

func TestThematicNegativeFrequencyIsMalformed(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{"themes": [{"name": "x", "frequency": -1}]}`}}
	_, err := NewThematic(testEnv(fake)).Analyze(context.Background(), simpleResponses(3))
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestThematicEmptyThemesArrayIsValid(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{"themes": []}`}}
	out, err := NewThematic(testEnv(fake)).Analyze(context.Background(), simpleResponses(3))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	var payload thematicPayload
	if err := json.Unmarshal(out.Results, &payload); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if payload.Themes == nil || len(payload.Themes) != 0 {
		t.Fatalf("expected empty themes array, got %+v", payload.Themes)
	}
}
