package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"survey-insights/internal/shared/metrics"
	"survey-insights/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

// Retrier re-issues transient provider failures with exponential backoff.
type Retrier struct {
	Attempts int
	Base     time.Duration
}

// Do runs call up to Attempts times. mayRetry is consulted before every
// extra attempt; it lets callers stop retrying once side effects (like
// delivered stream chunks) have escaped. Exhaustion wraps ErrUnavailable.
func (r Retrier) Do(ctx context.Context, call func() error, mayRetry func() bool) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	base := r.Base
	if base <= 0 {
		base = retryBaseDelay
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = call()
		if err == nil || !ShouldRetry(err) {
			return err
		}
		if attempt == attempts || (mayRetry != nil && !mayRetry()) {
			break
		}
		metrics.IncProviderRetries()
		delay := base << (attempt - 1)
		telemetry.Warn("provider retry", map[string]any{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// ShouldRetry reports whether an error looks transient. Configuration
// errors and caller cancellation are never retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConfiguration) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == 429 || apierr.StatusCode >= 500
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "http status 429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "overloaded") {
		return true
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "client.timeout") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}
