package reply

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/busassist/busassist/internal/llm"
)

// Formatter turns query results into a short chat-style reply.
type Formatter struct {
	model llm.Model
}

func NewFormatter(model llm.Model) (*Formatter, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	return &Formatter{model: model}, nil
}

// Format accepts any JSON-encodable result, including an {"error": ...} value.
func (f *Formatter) Format(ctx context.Context, transcript, userInput string, results any) (string, error) {
	encoded, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	text, err := f.model.Generate(ctx, BuildPrompt(transcript, userInput, string(encoded)))
	if err != nil {
		return "", fmt.Errorf("format reply: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func BuildPrompt(transcript, userInput, resultsJSON string) string {
	return "Conversation so far:\n" + transcript +
		"\n\nUser just asked: " + userInput +
		"\nHere are SQL query results:\n" + resultsJSON +
		"\nFormat this as a clear SMS/WhatsApp style reply:"
}
