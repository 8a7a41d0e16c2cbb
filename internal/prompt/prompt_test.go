package prompt

import (
	"strings"
	"testing"
)

func sampleResponses(n int) []Response {
	out := make([]Response, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Response{
			ID:       "r" + string(rune('a'+i)),
			Question: "How is the workload?",
			Text:     "Too many late evenings lately.",
		})
	}
	return out
}

func TestBuildIsDeterministic(t *testing.T) {
	in := Input{
		Responses: sampleResponses(5),
		Options:   Options{Language: "german", ResponseCap: 10},
	}
	for _, typ := range []string{"thematic", "clusters", "recommendations"} {
		sys1, user1, err := Build(typ, in)
		if err != nil {
			t.Fatalf("Build(%s): %v", typ, err)
		}
		sys2, user2, err := Build(typ, in)
		if err != nil {
			t.Fatalf("Build(%s) second call: %v", typ, err)
		}
		if sys1 != sys2 || user1 != user2 {
			t.Fatalf("Build(%s) not deterministic", typ)
		}
	}
}

func TestBuildUnknownType(t *testing.T) {
	if _, _, err := Build("sentiment", Input{}); err == nil {
		t.Fatal("expected error for unknown analysis type")
	}
}

func TestResponseCapTruncatesLines(t *testing.T) {
	in := Input{
		Responses: sampleResponses(6),
		Options:   Options{ResponseCap: 2},
	}
	_, user, err := Build("thematic", in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Count(user, "\n") > 4 {
		t.Fatalf("expected capped output, got:\n%s", user)
	}
	if !strings.Contains(user, "1. ") || !strings.Contains(user, "2. ") {
		t.Fatalf("expected first two numbered responses, got:\n%s", user)
	}
	if strings.Contains(user, "3. ") {
		t.Fatalf("expected third response dropped, got:\n%s", user)
	}
	if !strings.Contains(user, "4 more responses omitted") {
		t.Fatalf("expected omission marker, got:\n%s", user)
	}
}

func TestLongAnswersAreShortened(t *testing.T) {
	long := strings.Repeat("x", 900)
	in := Input{
		Responses: []Response{{ID: "r1", Question: "Q", Text: long}},
		Options:   Options{AnswerMaxLen: 100},
	}
	_, user, err := Build("thematic", in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Contains(user, long) {
		t.Fatal("expected long answer to be truncated")
	}
	if !strings.Contains(user, strings.Repeat("x", 100)+"...") {
		t.Fatalf("expected ellipsis suffix, got:\n%s", user)
	}
}

func TestSystemPromptsRequestStrictJSON(t *testing.T) {
	in := Input{
		Responses: sampleResponses(3),
		Pairs: []QuestionPair{{
			FirstGroup: "A", FirstQuestion: "q1",
			SecondGroup: "B", SecondQuestion: "q2",
			Answers: []PairedAnswer{{RespondentID: "anon-1", First: "yes", Second: "no"}},
		}},
		Sections: []Section{{Title: "Work", Responses: sampleResponses(2)}},
	}
	wantKey := map[string]string{
		"thematic":        `"themes"`,
		"clusters":        `"clusters"`,
		"contradictions":  `"contradictions"`,
		"insights":        `"insights"`,
		"recommendations": `"recommendations"`,
	}
	for typ, key := range wantKey {
		sys, _, err := Build(typ, in)
		if err != nil {
			t.Fatalf("Build(%s): %v", typ, err)
		}
		if !strings.Contains(sys, "Respond with JSON only (no markdown):") {
			t.Errorf("%s: missing JSON-only instruction", typ)
		}
		if !strings.Contains(sys, key) {
			t.Errorf("%s: system prompt does not mention %s", typ, key)
		}
	}
}

func TestClustersSystemCarriesMinSize(t *testing.T) {
	in := Input{Responses: sampleResponses(8), Options: Options{MinClusterSize: 4}}
	sys, _, err := Build("clusters", in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(sys, "at least 4 members") {
		t.Fatalf("expected min cluster size in system prompt, got:\n%s", sys)
	}
}

func TestContradictionsUserListsPairs(t *testing.T) {
	in := Input{
		Pairs: []QuestionPair{
			{
				FirstGroup: "Work environment", FirstQuestion: "Do you feel supported?",
				SecondGroup: "Leadership", SecondQuestion: "Does management listen?",
				Answers: []PairedAnswer{
					{RespondentID: "anon-aa", First: "absolutely", Second: "never"},
					{RespondentID: "anon-bb", First: "somewhat", Second: "sometimes"},
				},
			},
			{
				FirstGroup: "Pay", FirstQuestion: "Is pay fair?",
				SecondGroup: "Retention", SecondQuestion: "Will you stay?",
			},
		},
	}
	_, user, err := Build("contradictions", in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(user, "Pair P1:") || !strings.Contains(user, "Pair P2:") {
		t.Fatalf("expected numbered pairs, got:\n%s", user)
	}
	if !strings.Contains(user, "anon-aa") || !strings.Contains(user, `"absolutely" | "never"`) {
		t.Fatalf("expected paired answers, got:\n%s", user)
	}
}

func TestInsightsUserRendersSections(t *testing.T) {
	in := Input{
		Sections: []Section{
			{Title: "Work environment", Responses: sampleResponses(1)},
			{Title: "Leadership", Responses: sampleResponses(1)},
		},
	}
	_, user, err := Build("insights", in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(user, "Section 1: Work environment") || !strings.Contains(user, "Section 2: Leadership") {
		t.Fatalf("expected section headers, got:\n%s", user)
	}
}

func TestRecommendationsUserHandlesPriorFindings(t *testing.T) {
	in := Input{Responses: sampleResponses(2)}
	_, user, err := Build("recommendations", in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(user, "Prior findings:\nnone") {
		t.Fatalf("expected empty prior block, got:\n%s", user)
	}

	in.Prior = []PriorFinding{{AnalysisType: "thematic", Summary: "workload dominates"}}
	_, user, err = Build("recommendations", in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(user, "- thematic: workload dominates") {
		t.Fatalf("expected prior finding line, got:\n%s", user)
	}
}

func TestLanguageIsEmbedded(t *testing.T) {
	in := Input{Responses: sampleResponses(1), Options: Options{Language: "french"}}
	sys, _, err := Build("thematic", in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(sys, "in french") {
		t.Fatalf("expected language in system prompt, got:\n%s", sys)
	}
}
