package memory

import (
	"context"
	"testing"

	"survey-insights/internal/vectorstore"
)

func TestInitValidatesDimension(t *testing.T) {
	s := NewStore()
	if err := s.Init(context.Background(), 0); err == nil {
		t.Fatal("expected error for dimension 0")
	}
	if err := s.Init(context.Background(), 3); err != nil {
		t.Fatalf("Init: %v", err)
	}
}

func TestUpsertRejectsMismatches(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.Init(ctx, 2); err != nil {
		t.Fatalf("Init: %v", err)
	}

	err := s.Upsert(ctx, []vectorstore.Record{{ResponseID: "r1"}}, nil)
	if err == nil {
		t.Fatal("expected length mismatch error")
	}

	err = s.Upsert(ctx, []vectorstore.Record{{ResponseID: "r1"}}, [][]float64{{1, 2, 3}})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.Init(ctx, 2); err != nil {
		t.Fatalf("Init: %v", err)
	}

	records := []vectorstore.Record{
		{ResponseID: "aligned", QuestionID: "q1", Text: "yes"},
		{ResponseID: "orthogonal", QuestionID: "q1", Text: "no"},
		{ResponseID: "close", QuestionID: "q2", Text: "mostly yes"},
	}
	vectors := [][]float64{
		{1, 0},
		{0, 1},
		{0.9, 0.1},
	}
	if err := s.Upsert(ctx, records, vectors); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := s.Search(ctx, []float64{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Record.ResponseID != "aligned" {
		t.Fatalf("top result = %s, want aligned", results[0].Record.ResponseID)
	}
	if results[1].Record.ResponseID != "close" {
		t.Fatalf("second result = %s, want close", results[1].Record.ResponseID)
	}
	if results[0].Score < results[1].Score {
		t.Fatal("results not sorted by score desc")
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.Init(ctx, 1); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.Upsert(ctx, []vectorstore.Record{{ResponseID: "r"}}, [][]float64{{1}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	results, err := s.Search(ctx, []float64{1}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results after Clear, want 0", len(results))
	}
}
