package metrics

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
)

var (
	jobsSubmittedTotal atomic.Uint64
	jobsCompletedTotal atomic.Uint64
	jobsFailedTotal    atomic.Uint64
	jobsCancelledTotal atomic.Uint64

	analysesCompletedTotal atomic.Uint64
	analysesFailedTotal    atomic.Uint64

	providerCallsTotal    atomic.Uint64
	providerRetriesTotal  atomic.Uint64
	providerFailuresTotal atomic.Uint64

	complianceRejectionsTotal atomic.Uint64

	providerInputTokensTotal  atomic.Uint64
	providerOutputTokensTotal atomic.Uint64

	jobDuration          = newHistogram([]float64{500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000})
	providerCallDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncJobSubmitted increments the submitted-jobs counter.
func IncJobSubmitted() {
	jobsSubmittedTotal.Add(1)
}

// IncJobCompleted increments the completed-jobs counter.
func IncJobCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncJobFailed increments the failed-jobs counter.
func IncJobFailed() {
	jobsFailedTotal.Add(1)
}

// IncJobCancelled increments the cancelled-jobs counter.
func IncJobCancelled() {
	jobsCancelledTotal.Add(1)
}

// IncAnalysisCompleted increments the per-type completion counter.
func IncAnalysisCompleted() {
	analysesCompletedTotal.Add(1)
}

// IncAnalysisFailed increments the per-type failure counter.
func IncAnalysisFailed() {
	analysesFailedTotal.Add(1)
}

// IncProviderCall increments the provider-call counter.
func IncProviderCall() {
	providerCallsTotal.Add(1)
}

// IncProviderRetry increments the provider-retry counter.
func IncProviderRetry() {
	providerRetriesTotal.Add(1)
}

// IncProviderFailure increments the provider-failure counter.
func IncProviderFailure() {
	providerFailuresTotal.Add(1)
}

// IncComplianceRejection increments the compliance-gate rejection counter.
func IncComplianceRejection() {
	complianceRejectionsTotal.Add(1)
}

// AddProviderTokens records token usage reported by a provider call.
func AddProviderTokens(input, output uint64) {
	providerInputTokensTotal.Add(input)
	providerOutputTokensTotal.Add(output)
}

// ObserveJobDurationMs records a whole-job duration in milliseconds.
func ObserveJobDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	jobDuration.Observe(value)
}

// ObserveProviderCallMs records a single provider call duration in milliseconds.
func ObserveProviderCallMs(value float64) {
	if value < 0 {
		value = 0
	}
	providerCallDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = io.WriteString(w, Render())
	})
}

// Render renders all metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "jobs_submitted_total", "Total analysis jobs submitted", jobsSubmittedTotal.Load())
	writeCounter(&buf, "jobs_completed_total", "Total analysis jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "jobs_failed_total", "Total analysis jobs failed", jobsFailedTotal.Load())
	writeCounter(&buf, "jobs_cancelled_total", "Total analysis jobs cancelled", jobsCancelledTotal.Load())
	writeCounter(&buf, "analyses_completed_total", "Total analysis types completed", analysesCompletedTotal.Load())
	writeCounter(&buf, "analyses_failed_total", "Total analysis types failed", analysesFailedTotal.Load())
	writeCounter(&buf, "provider_calls_total", "Total LLM provider calls", providerCallsTotal.Load())
	writeCounter(&buf, "provider_retries_total", "Total LLM provider retries", providerRetriesTotal.Load())
	writeCounter(&buf, "provider_failures_total", "Total LLM provider call failures", providerFailuresTotal.Load())
	writeCounter(&buf, "compliance_rejections_total", "Total jobs rejected by the compliance gate", complianceRejectionsTotal.Load())
	writeCounter(&buf, "provider_input_tokens_total", "Total input tokens sent to providers", providerInputTokensTotal.Load())
	writeCounter(&buf, "provider_output_tokens_total", "Total output tokens returned by providers", providerOutputTokensTotal.Load())
	writeHistogram(&buf, "job_duration_ms", "Whole-job duration in milliseconds", jobDuration.Snapshot())
	writeHistogram(&buf, "provider_call_duration_ms", "Provider call duration in milliseconds", providerCallDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
