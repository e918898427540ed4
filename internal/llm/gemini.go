package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	// BaseURL overrides the Gemini API endpoint; empty uses the SDK default.
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiModel generates text through the Gemini API.
type GeminiModel struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiModel(ctx context.Context, cfg GeminiConfig) (*GeminiModel, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiModel{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
	}, nil
}

func (m *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := m.temperature
	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: &temperature,
	})
	if err != nil {
		var apiErr genai.APIError
		if asAPIError(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return resp.Text(), nil
}

func asAPIError(err error, target *genai.APIError) bool {
	if errors.As(err, target) {
		return true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		*target = *ptr
		return true
	}
	return false
}
