package llm

import (
	"context"
	"fmt"
)

// Model is a synchronous text-in/text-out language model.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StatusError reports a non-success HTTP status from a model provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model request failed status=%d body=%s", e.StatusCode, e.Body)
}

// Retryable reports whether another attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// CallError is returned once every attempt against a provider has failed.
type CallError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s model call failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
