package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func groupedResponses(groups int, perGroup int) []Sanitized {
	out := make([]Sanitized, 0, groups*perGroup)
	for g := 0; g < groups; g++ {
		for i := 0; i < perGroup; i++ {
			out = append(out, sanitized(
				fmt.Sprintf("r-%d-%d", g, i),
				fmt.Sprintf("q-%d", g), fmt.Sprintf("Question %d?", g),
				fmt.Sprintf("g-%d", g), fmt.Sprintf("Group %d", g), g+1,
				fmt.Sprintf("anon-%d-%d", g, i), fmt.Sprintf("answer %d from group %d", i, g),
			))
		}
	}
	return out
}

func TestSectionResponsesKeepsGroupOrder(t *testing.T) {
	sections := sectionResponses(groupedResponses(3, 2))
	if len(sections) != 3 {
		t.Fatalf("expected one section per group, got %d", len(sections))
	}
	for g, s := range sections {
		if s.Title != fmt.Sprintf("Group %d", g) {
			t.Fatalf("section %d title %q", g, s.Title)
		}
		if len(s.Responses) != 2 {
			t.Fatalf("section %d has %d responses", g, len(s.Responses))
		}
	}
}

func TestSectionResponsesFoldsIntoFourSections(t *testing.T) {
	sections := sectionResponses(groupedResponses(6, 1))
	if len(sections) != 4 {
		t.Fatalf("expected exactly 4 sections, got %d", len(sections))
	}
	// 6 groups over 4 sections: the first two sections take two groups.
	if !strings.Contains(sections[0].Title, " / ") || !strings.Contains(sections[1].Title, " / ") {
		t.Fatalf("expected merged titles, got %q and %q", sections[0].Title, sections[1].Title)
	}
	if strings.Contains(sections[2].Title, " / ") || strings.Contains(sections[3].Title, " / ") {
		t.Fatalf("expected single-group tail sections, got %q and %q", sections[2].Title, sections[3].Title)
	}
	total := 0
	for _, s := range sections {
		total += len(s.Responses)
	}
	if total != 6 {
		t.Fatalf("partition must cover every response, got %d", total)
	}
}

func TestInsightsHappyPath(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{
		"insights": [
			{"title": "support gap", "narrative": "environment praise clashes with leadership distrust", "sections": ["Group 0", "Group 1"], "significance": "retention risk"}
		],
		"keyFindings": ["leadership is the weak link"]
	}`}}
	env := testEnv(fake)

	out, err := NewInsights(env).Analyze(context.Background(), groupedResponses(2, 3))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var payload insightsPayload
	if err := json.Unmarshal(out.Results, &payload); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(payload.Insights) != 1 || payload.Insights[0].Title != "support gap" {
		t.Fatalf("unexpected insights %+v", payload.Insights)
	}
	if len(payload.Sections) != 2 || payload.Sections[0] != "Group 0" {
		t.Fatalf("unexpected sections %v", payload.Sections)
	}
	// Key findings present: structure bonus.
	if out.ConfidenceScore != 0.7 {
		t.Fatalf("unexpected confidence %v", out.ConfidenceScore)
	}
}

func TestInsightsWithoutKeyFindings(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{"insights": [{"title": "t", "narrative": "n"}]}`}}
	out, err := NewInsights(testEnv(fake)).Analyze(context.Background(), groupedResponses(2, 2))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.ConfidenceScore != 0.5 {
		t.Fatalf("expected base confidence, got %v", out.ConfidenceScore)
	}
	var payload insightsPayload
	if err := json.Unmarshal(out.Results, &payload); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if payload.KeyFindings == nil || len(payload.KeyFindings) != 0 {
		t.Fatalf("key findings must marshal as an empty array, got %v", payload.KeyFindings)
	}
}

func TestInsightsEmptyNarrativeIsMalformed(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{"insights": [{"title": "t", "narrative": "  "}]}`}}
	_, err := NewInsights(testEnv(fake)).Analyze(context.Background(), groupedResponses(2, 2))
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestInsightsPromptRendersSections(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{"insights": []}`}}
	env := testEnv(fake)

	if _, err := NewInsights(env).Analyze(context.Background(), groupedResponses(2, 1)); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	user := fake.requests[0].User
	if !strings.Contains(user, "Section 1: Group 0") || !strings.Contains(user, "Section 2: Group 1") {
		t.Fatalf("expected section headers in prompt:\n%s", user)
	}
}
