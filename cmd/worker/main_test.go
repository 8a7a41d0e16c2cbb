package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEnvInt(t *testing.T) {
	t.Setenv("WORKER_TEST_INT", "7")
	if got := envInt("WORKER_TEST_INT", 3); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}

	t.Setenv("WORKER_TEST_INT", "not-a-number")
	if got := envInt("WORKER_TEST_INT", 3); got != 3 {
		t.Fatalf("expected default 3 on invalid value, got %d", got)
	}

	if got := envInt("WORKER_TEST_INT_UNSET", 5); got != 5 {
		t.Fatalf("expected default 5 when unset, got %d", got)
	}
}

func TestStartMetricsServerDisabledWithoutAddr(t *testing.T) {
	t.Setenv("METRICS_ADDR", "")
	if srv := startMetricsServer(); srv != nil {
		t.Fatal("expected no server when METRICS_ADDR is empty")
	}
}

func TestMetricsMuxHealthz(t *testing.T) {
	mux := newMetricsMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestMetricsMuxRendersCounters(t *testing.T) {
	mux := newMetricsMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "jobs_submitted_total") {
		t.Fatal("expected jobs_submitted_total in metrics output")
	}
}
