package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"intramind/internal/domain"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"openai 429", &openai.APIError{HTTPStatusCode: 429, Message: "rate"}, true},
		{"openai 500", &openai.APIError{HTTPStatusCode: 500}, true},
		{"openai 401", &openai.APIError{HTTPStatusCode: 401}, false},
		{"openai request 502", &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, true},
		{"openai request 404", &openai.RequestError{HTTPStatusCode: 404, Err: errors.New("not found")}, false},
		{"genai 503", genai.APIError{Code: 503}, true},
		{"genai 400", genai.APIError{Code: 400}, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"network", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"plain", errors.New("malformed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.IsTransient(ClassifyError("op", tt.err))
			if got != tt.transient {
				t.Errorf("expected transient=%v, got %v", tt.transient, got)
			}
		})
	}

	if ClassifyError("op", nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestPolicyDo_RetriesThenSucceeds(t *testing.T) {
	p := Policy{MaxRetries: 3, RetryDelay: time.Millisecond, Timeout: time.Second, Limiter: NewLimiter(1000)}

	attempts := 0
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		attempts++
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected per-attempt deadline")
		}
		if attempts < 3 {
			return &openai.APIError{HTTPStatusCode: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestPolicyDo_Exhausted(t *testing.T) {
	p := Policy{MaxRetries: 1, RetryDelay: time.Millisecond}
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		return &openai.APIError{HTTPStatusCode: 429}
	})
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestNewLimiter_Disabled(t *testing.T) {
	var l *Limiter = NewLimiter(0)
	if l != nil {
		t.Fatal("expected nil limiter for rps 0")
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter should not block: %v", err)
	}
}
