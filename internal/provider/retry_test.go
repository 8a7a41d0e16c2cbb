package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func TestRetrierStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retrier{Attempts: 3, Base: time.Millisecond}.Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return fmt.Errorf("http status 502: bad gateway")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetrierWrapsExhaustion(t *testing.T) {
	calls := 0
	err := Retrier{Attempts: 2, Base: time.Millisecond}.Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("connection refused")
	}, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetrierHonorsMayRetry(t *testing.T) {
	calls := 0
	err := Retrier{Attempts: 5, Base: time.Millisecond}.Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("timeout waiting for response")
	}, func() bool { return false })
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

func TestRetrierStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retrier{Attempts: 5, Base: 50 * time.Millisecond}.Do(ctx, func() error {
		calls++
		cancel()
		return fmt.Errorf("http status 503: busy")
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetryClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"configuration", fmt.Errorf("%w: missing key", ErrConfiguration), false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"net timeout", net.Error(timeoutErr{}), true},
		{"http 5xx", fmt.Errorf("openai http status 502: gateway"), true},
		{"http 429", fmt.Errorf("openai http status 429: slow down"), true},
		{"rate limit text", fmt.Errorf("rate limit exceeded"), true},
		{"overloaded", fmt.Errorf("anthropic: Overloaded"), true},
		{"connection reset", fmt.Errorf("read tcp: connection reset by peer"), true},
		{"bad request", fmt.Errorf("openai http status 400: invalid"), false},
		{"parse failure", fmt.Errorf("openai response parse: unexpected token"), false},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Errorf("%s: ShouldRetry=%v want %v", tc.name, got, tc.want)
		}
	}
}
