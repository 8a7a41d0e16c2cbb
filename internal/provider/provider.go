// Package provider abstracts the LLM backends the analysis engines call.
// Every outbound call goes through the shared rate limiter, the retry
// policy, and token/cost accounting.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"survey-insights/internal/shared/metrics"
	"survey-insights/internal/shared/telemetry"
)

// ErrConfiguration marks missing or unusable provider credentials.
// Fatal for the job, never retried.
var ErrConfiguration = errors.New("provider configuration error")

// ErrUnavailable marks a provider that kept failing after retries were
// exhausted. Scoped to one analysis type.
var ErrUnavailable = errors.New("provider unavailable")

// Request is one prompt exchange sent to a provider.
type Request struct {
	System    string
	User      string
	Model     string
	MaxTokens int
}

// Usage counts tokens consumed by one or more calls.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add accumulates another call's token counts.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Result is a raw provider completion plus its accounting.
type Result struct {
	Text  string
	Usage Usage
}

// Completer is the single-shot capability every provider implements.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (Result, error)
}

// Streamer delivers ordered text chunks as they arrive. onChunk runs on
// the caller's goroutine in arrival order; once ctx is cancelled no
// further chunk is delivered.
type Streamer interface {
	Stream(ctx context.Context, req Request, onChunk func(text string)) (Result, error)
}

// CallResult is what analysis engines receive back from Call.
type CallResult struct {
	Text         string
	Usage        Usage
	Provider     string
	Model        string
	CostEstimate float64
	DurationMs   int64
}

// Settings configures the registry from the outside.
type Settings struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	MaxCalls        int
	Window          time.Duration
	Retries         int
	PricingPath     string
}

// Registry holds the configured provider adapters together with the
// shared limiter, retry policy, and price table.
type Registry struct {
	providers map[string]Completer
	limiter   *Limiter
	retrier   Retrier
	prices    *PriceTable
	now       func() time.Time
}

// NewRegistry constructs adapters for every provider with credentials.
// At least one provider must be configured.
func NewRegistry(s Settings) (*Registry, error) {
	providers := make(map[string]Completer)
	if strings.TrimSpace(s.AnthropicAPIKey) != "" {
		client, err := NewAnthropicClient(s.AnthropicAPIKey)
		if err != nil {
			return nil, err
		}
		providers[client.Name()] = client
	}
	if strings.TrimSpace(s.OpenAIAPIKey) != "" {
		client, err := NewOpenAIClient(s.OpenAIBaseURL, s.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		providers[client.Name()] = client
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: no provider API key set", ErrConfiguration)
	}

	prices := DefaultPriceTable()
	if strings.TrimSpace(s.PricingPath) != "" {
		loaded, err := LoadPriceTable(s.PricingPath)
		if err != nil {
			return nil, fmt.Errorf("load pricing table: %w", err)
		}
		prices = loaded
	}

	return &Registry{
		providers: providers,
		limiter:   NewLimiter(s.MaxCalls, s.Window),
		retrier:   Retrier{Attempts: s.Retries},
		prices:    prices,
		now:       time.Now,
	}, nil
}

// Names lists the configured providers.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Call sends one prompt through the named provider. When onChunk is
// non-nil and the provider can stream, chunks are forwarded as they
// arrive; otherwise the call completes in one shot. Transient failures
// are retried unless a chunk was already delivered, so a subscriber
// never sees the same text twice.
func (r *Registry) Call(ctx context.Context, name string, req Request, onChunk func(text string)) (CallResult, error) {
	completer, ok := r.providers[name]
	if !ok {
		return CallResult{}, fmt.Errorf("%w: provider %q not configured", ErrConfiguration, name)
	}

	if err := r.limiter.Wait(ctx, name); err != nil {
		return CallResult{}, err
	}

	streamer, canStream := completer.(Streamer)
	start := r.now()

	var result Result
	delivered := false
	err := r.retrier.Do(ctx, func() error {
		metrics.IncProviderCalls()
		var callErr error
		if canStream && onChunk != nil {
			result, callErr = streamer.Stream(ctx, req, func(text string) {
				delivered = true
				onChunk(text)
			})
		} else {
			result, callErr = completer.Complete(ctx, req)
		}
		return callErr
	}, func() bool { return !delivered })

	elapsed := r.now().Sub(start)
	metrics.ObserveProviderCallMs(elapsed.Milliseconds())
	if err != nil {
		metrics.IncProviderFailures()
		return CallResult{}, err
	}

	metrics.AddProviderTokens(uint64(result.Usage.InputTokens), uint64(result.Usage.OutputTokens))
	cost := r.prices.Estimate(name, req.Model, result.Usage)
	telemetry.Debug("provider call", map[string]any{
		"provider":      name,
		"model":         req.Model,
		"input_tokens":  result.Usage.InputTokens,
		"output_tokens": result.Usage.OutputTokens,
		"duration_ms":   elapsed.Milliseconds(),
		"cost_estimate": cost,
	})

	return CallResult{
		Text:         result.Text,
		Usage:        result.Usage,
		Provider:     name,
		Model:        req.Model,
		CostEstimate: cost,
		DurationMs:   elapsed.Milliseconds(),
	}, nil
}
