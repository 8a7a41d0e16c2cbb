package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	memorystore "survey-insights/internal/vectorstore/memory"
)

func opinionResponses() []Sanitized {
	texts := []string{
		"remote work keeps me productive and happy",
		"remote work keeps me productive and happy",
		"remote work keeps me productive and happy",
		"office noise makes any focus impossible",
		"office noise makes any focus impossible",
		"office noise makes any focus impossible",
	}
	out := make([]Sanitized, 0, len(texts))
	for i, text := range texts {
		out = append(out, sanitized(
			fmt.Sprintf("resp-%02d", i), "q1", "Where do you work best?",
			"g1", "Work setup", 1,
			fmt.Sprintf("anon-%02d", i), text,
		))
	}
	return out
}

func TestClustersShortCircuitBelowThreshold(t *testing.T) {
	fake := &fakeCaller{}
	env := testEnv(fake)
	env.MinClusterSize = 3

	out, err := NewClusters(env).Analyze(context.Background(), simpleResponses(3))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("short circuit must not call the provider, got %d calls", fake.calls)
	}

	var payload clustersPayload
	if err := json.Unmarshal(out.Results, &payload); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if !payload.ShortCircuited {
		t.Fatal("expected short-circuit marker")
	}
	if len(payload.Clusters) != 1 {
		t.Fatalf("expected one trivial cluster, got %d", len(payload.Clusters))
	}
	if payload.Clusters[0].CohesionScore != 1.0 {
		t.Fatalf("trivial cluster cohesion must be 1.0, got %v", payload.Clusters[0].CohesionScore)
	}
	if len(payload.Clusters[0].Members) != 3 {
		t.Fatalf("all responses belong to the trivial cluster, got %v", payload.Clusters[0].Members)
	}
	if out.Provider != "" || out.TokensUsed != 0 || out.CostEstimate != 0 {
		t.Fatalf("short circuit must be free: %+v", out)
	}
	if out.ConfidenceScore != 0.5 {
		t.Fatalf("unexpected confidence %v", out.ConfidenceScore)
	}
}

func TestClustersBoundaryRunsProvider(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{"clusters": [
		{"label": "a", "summary": "s", "sentiment": "neutral", "characteristics": ["c"], "members": [1, 2, 3]},
		{"label": "b", "summary": "s", "sentiment": "neutral", "characteristics": ["c"], "members": [4, 5, 6]}
	]}`}}
	env := testEnv(fake)
	env.MinClusterSize = 3

	// Six responses meet the 2x threshold exactly, so the provider runs.
	if _, err := NewClusters(env).Analyze(context.Background(), opinionResponses()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("expected provider call at the boundary, got %d", fake.calls)
	}
}

func TestClustersComputesQualityMetrics(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{"clusters": [
		{"label": "remote advocates", "summary": "prefer home", "sentiment": "positive", "characteristics": ["flexibility"], "members": [1, 2, 3]},
		{"label": "office critics", "summary": "noise complaints", "sentiment": "negative", "characteristics": ["distraction"], "members": [4, 5, 6]}
	]}`}}
	env := testEnv(fake)
	env.MinClusterSize = 3

	out, err := NewClusters(env).Analyze(context.Background(), opinionResponses())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var payload clustersPayload
	if err := json.Unmarshal(out.Results, &payload); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(payload.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(payload.Clusters))
	}
	first := payload.Clusters[0]
	if len(first.Members) != 3 || first.Members[0] != "resp-00" {
		t.Fatalf("member numbers must map back to response ids, got %v", first.Members)
	}
	// Identical member texts embed identically, so cohesion is exactly 1.
	if first.CohesionScore < 0.999 {
		t.Fatalf("expected near-perfect cohesion, got %v", first.CohesionScore)
	}
	if len(first.Centroid) == 0 {
		t.Fatal("expected centroid vector")
	}
	if payload.SilhouetteScore <= 0 || payload.SilhouetteScore > 1 {
		t.Fatalf("well-separated clusters need positive silhouette, got %v", payload.SilhouetteScore)
	}
	if payload.InterClusterDistance <= 0 {
		t.Fatalf("distinct centroids need positive distance, got %v", payload.InterClusterDistance)
	}
	// Every cluster carries sentiment and characteristics: structure bonus.
	if out.ConfidenceScore != 0.7 {
		t.Fatalf("unexpected confidence %v", out.ConfidenceScore)
	}
}

func TestClustersIndexesEmbeddings(t *testing.T) {
	store := memorystore.NewStore()
	fake := &fakeCaller{replies: []string{`{"clusters": [
		{"label": "a", "members": [1, 2, 3], "sentiment": "neutral", "characteristics": ["c"]},
		{"label": "b", "members": [4, 5, 6], "sentiment": "neutral", "characteristics": ["c"]}
	]}`}}
	env := testEnv(fake)
	env.Vectors = store

	responses := opinionResponses()
	if _, err := NewClusters(env).Analyze(context.Background(), responses); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	vec, err := env.Embedder.Embed(context.Background(), responses[0].Text)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	hits, err := store.Search(context.Background(), vec, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 6 {
		t.Fatalf("expected all embeddings indexed, got %d", len(hits))
	}
	if hits[0].Record.ResponseID != "resp-00" && hits[0].Score < 0.999 {
		t.Fatalf("expected an exact match first, got %+v", hits[0])
	}
}

func TestClustersRejectsOutOfRangeMember(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{"clusters": [{"label": "a", "members": [1, 9]}]}`}}
	env := testEnv(fake)

	_, err := NewClusters(env).Analyze(context.Background(), opinionResponses())
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("expected single retry, got %d calls", fake.calls)
	}
}

func TestClustersRejectsDoubleAssignment(t *testing.T) {
	fake := &fakeCaller{replies: []string{`{"clusters": [
		{"label": "a", "members": [1, 2]},
		{"label": "b", "members": [2, 3]}
	]}`}}
	env := testEnv(fake)

	_, err := NewClusters(env).Analyze(context.Background(), opinionResponses())
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestClustersEmptyInputIsValidationError(t *testing.T) {
	fake := &fakeCaller{}
	_, err := NewClusters(testEnv(fake)).Analyze(context.Background(), nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
