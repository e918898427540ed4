package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/busassist/busassist/internal/observability"
)

type RetryPolicy struct {
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries int
	BaseDelay  time.Duration
	// Timeout bounds every single attempt.
	Timeout time.Duration
}

// Retrying wraps a Model with a per-attempt timeout and bounded exponential
// backoff. Provider errors that carry a non-retryable status stop immediately.
type Retrying struct {
	next     Model
	provider string
	policy   RetryPolicy
	logger   *slog.Logger
}

func NewRetrying(next Model, provider string, policy RetryPolicy, logger *slog.Logger) *Retrying {
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 500 * time.Millisecond
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &Retrying{next: next, provider: provider, policy: policy, logger: logger}
}

func (r *Retrying) Generate(ctx context.Context, prompt string) (string, error) {
	attempts := 0
	operation := func() (string, error) {
		attempts++
		attemptCtx := ctx
		if r.policy.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
			defer cancel()
		}
		text, err := r.next.Generate(attemptCtx, prompt)
		observability.ObserveLLMCall(r.provider, err)
		if err == nil {
			return text, nil
		}
		if !retryable(ctx, err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.policy.BaseDelay
	policy.MaxInterval = 10 * r.policy.BaseDelay
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		observability.IncrementLLMRetry(r.provider)
		if r.logger != nil {
			r.logger.WarnContext(ctx, "retrying model call",
				slog.String("provider", r.provider),
				slog.Int("attempt", attempts),
				slog.Duration("wait", wait),
				slog.Any("error", err),
			)
		}
	}

	text, err := backoff.RetryNotifyWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.policy.MaxRetries)), ctx),
		notify,
	)
	if err != nil {
		return "", &CallError{Provider: r.provider, Attempts: attempts, Err: err}
	}
	return text, nil
}

func retryable(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
