package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/busassist/busassist/internal/llm"
)

type Result struct {
	SQL string `json:"sql"`
	Raw string `json:"raw"`
}

// Generator asks a language model for SQL using the fixed schema prompt.
type Generator struct {
	model llm.Model
}

func NewGenerator(model llm.Model) (*Generator, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	return &Generator{model: model}, nil
}

// Generate performs one model round trip. The returned SQL is not validated;
// an empty or malformed statement is left for the executor to reject.
func (g *Generator) Generate(ctx context.Context, transcript, userInput string) (Result, error) {
	raw, err := g.model.Generate(ctx, BuildPrompt(transcript, userInput))
	if err != nil {
		return Result{}, fmt.Errorf("generate sql: %w", err)
	}
	return Result{SQL: StripCodeFence(raw), Raw: raw}, nil
}

func BuildPrompt(transcript, userInput string) string {
	return SchemaPrompt + "\nConversation so far:\n" + transcript + "\n\nUser: " + userInput + "\nSQL:"
}

// StripCodeFence removes a surrounding ```sql (or bare ```) fence and the
// whitespace around it. Text without a fence is only trimmed.
func StripCodeFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "sql") {
			trimmed = trimmed[3:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
