package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/busassist/busassist/internal/config"
)

// New builds the configured provider and wraps it with the retry policy.
func New(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (Model, error) {
	var (
		base Model
		err  error
	)
	switch cfg.Provider {
	case config.LLMProviderGemini:
		base, err = NewGeminiModel(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	case config.LLMProviderOpenAI:
		base, err = NewOpenAIModel(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewRetrying(base, cfg.Provider, RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
		Timeout:    cfg.Timeout,
	}, logger), nil
}
