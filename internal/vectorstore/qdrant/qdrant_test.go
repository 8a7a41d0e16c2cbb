package qdrant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"survey-insights/internal/vectorstore"
)

func TestInitCreatesCollection(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewStore(Config{URL: srv.URL, Collection: "survey_responses"})
	if err := s.Init(context.Background(), 64); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/collections/survey_responses" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	vectors, _ := gotBody["vectors"].(map[string]any)
	if vectors["size"].(float64) != 64 || vectors["distance"] != "Cosine" {
		t.Fatalf("vectors config = %v", vectors)
	}
}

func TestUpsertSendsPoints(t *testing.T) {
	var gotBody struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float64      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/points") {
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, &gotBody)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewStore(Config{URL: srv.URL, Collection: "c"})
	records := []vectorstore.Record{{ResponseID: "r1", QuestionID: "q1", Text: "[EMAIL] works"}}
	err := s.Upsert(context.Background(), records, [][]float64{{0.5, 0.5}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(gotBody.Points) != 1 {
		t.Fatalf("points = %d, want 1", len(gotBody.Points))
	}
	p := gotBody.Points[0]
	if p.ID != "r1" || p.Payload["question_id"] != "q1" || p.Payload["text"] != "[EMAIL] works" {
		t.Fatalf("point = %+v", p)
	}
}

func TestSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"score": 0.93,
					"payload": map[string]any{
						"response_id": "r7",
						"question_id": "q2",
						"text":        "flexible hours",
					},
				},
			},
		})
	}))
	defer srv.Close()

	s := NewStore(Config{URL: srv.URL, Collection: "c"})
	results, err := s.Search(context.Background(), []float64{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	got := results[0]
	if got.Score != 0.93 || got.Record.ResponseID != "r7" || got.Record.QuestionID != "q2" {
		t.Fatalf("result = %+v", got)
	}
}

func TestErrorStatusSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewStore(Config{URL: srv.URL, Collection: "c"})
	if err := s.Init(context.Background(), 8); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewStore(Config{URL: srv.URL, Collection: "c", APIKey: "secret"})
	if err := s.Init(context.Background(), 4); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if gotKey != "secret" {
		t.Fatalf("api-key header = %q", gotKey)
	}
}
