package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedModel struct {
	calls   int
	results []scriptedResult
}

type scriptedResult struct {
	text string
	err  error
}

func (m *scriptedModel) Generate(_ context.Context, _ string) (string, error) {
	idx := m.calls
	m.calls++
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	return m.results[idx].text, m.results[idx].err
}

func TestRetryingRecoversFromTransientFailure(t *testing.T) {
	model := &scriptedModel{results: []scriptedResult{
		{err: &StatusError{StatusCode: 503}},
		{err: errors.New("connection reset")},
		{text: "ok"},
	}}
	r := NewRetrying(model, "fake", RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}, nil)

	text, err := r.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "ok" || model.calls != 3 {
		t.Fatalf("text=%q calls=%d", text, model.calls)
	}
}

func TestRetryingStopsOnPermanentStatus(t *testing.T) {
	model := &scriptedModel{results: []scriptedResult{{err: &StatusError{StatusCode: 400}}}}
	r := NewRetrying(model, "fake", RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}, nil)

	_, err := r.Generate(context.Background(), "p")
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("error = %v, want CallError", err)
	}
	if callErr.Attempts != 1 || model.calls != 1 {
		t.Fatalf("attempts=%d calls=%d", callErr.Attempts, model.calls)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 400 {
		t.Fatalf("unwrapped error = %v", err)
	}
}

func TestRetryingGivesUpAfterMaxRetries(t *testing.T) {
	model := &scriptedModel{results: []scriptedResult{{err: &StatusError{StatusCode: 500}}}}
	r := NewRetrying(model, "fake", RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}, nil)

	_, err := r.Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error")
	}
	if model.calls != 3 {
		t.Fatalf("calls = %d, want 3", model.calls)
	}
}

type slowModel struct{}

func (slowModel) Generate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRetryingAppliesPerAttemptTimeout(t *testing.T) {
	r := NewRetrying(slowModel{}, "fake", RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, Timeout: 10 * time.Millisecond}, nil)

	start := time.Now()
	_, err := r.Generate(context.Background(), "p")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("took %s", time.Since(start))
	}
}
