package nl2sql

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recordingModel struct {
	prompts []string
	text    string
	err     error
}

func (m *recordingModel) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.text, m.err
}

func TestGeneratorStripsFencedOutput(t *testing.T) {
	model := &recordingModel{text: "```sql\nSELECT bus_number FROM buses LIMIT 3;\n```"}
	gen, err := NewGenerator(model)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	result, err := gen.Generate(context.Background(), "", "Show all buses")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.SQL != "SELECT bus_number FROM buses LIMIT 3;" {
		t.Fatalf("sql = %q", result.SQL)
	}
	if result.Raw != model.text {
		t.Fatalf("raw = %q", result.Raw)
	}
}

func TestGeneratorPassesUnfencedOutputTrimmed(t *testing.T) {
	model := &recordingModel{text: "  SELECT 1;\n"}
	gen, _ := NewGenerator(model)

	result, err := gen.Generate(context.Background(), "", "ping")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.SQL != "SELECT 1;" {
		t.Fatalf("sql = %q", result.SQL)
	}
}

func TestGeneratorPromptCarriesTranscriptAndInput(t *testing.T) {
	model := &recordingModel{text: "SELECT 1"}
	gen, _ := NewGenerator(model)
	transcript := "User: Next bus from ISBT Chandigarh to Ludhiana?\nBot: PB-01-1234 is running."

	if _, err := gen.Generate(context.Background(), transcript, "What about tomorrow?"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	prompt := model.prompts[0]
	if !strings.HasPrefix(prompt, SchemaPrompt) {
		t.Fatal("prompt does not start with schema prompt")
	}
	if !strings.Contains(prompt, "\nConversation so far:\n"+transcript+"\n\nUser: What about tomorrow?\nSQL:") {
		t.Fatalf("prompt tail = %q", prompt[len(SchemaPrompt):])
	}
}

func TestGeneratorWrapsModelError(t *testing.T) {
	cause := errors.New("quota exceeded")
	gen, _ := NewGenerator(&recordingModel{err: cause})

	_, err := gen.Generate(context.Background(), "", "hi")
	if !errors.Is(err, cause) {
		t.Fatalf("error = %v, want wrapped cause", err)
	}
}

func TestNewGeneratorRequiresModel(t *testing.T) {
	if _, err := NewGenerator(nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"SELECT 1":                   "SELECT 1",
		"```sql\nSELECT 1\n```":      "SELECT 1",
		"```SQL\nSELECT 1\n```":      "SELECT 1",
		"```\nSELECT 1\n```":         "SELECT 1",
		"\n\n```sql SELECT 1```  \n": "SELECT 1",
		"SELECT 1\n```":              "SELECT 1",
		"":                           "",
	}
	for in, want := range tests {
		if got := StripCodeFence(in); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSchemaPromptListsEveryTable(t *testing.T) {
	for _, table := range TransitTables {
		line := table.Name + "(" + strings.Join(table.Columns, ", ") + ")"
		if !strings.Contains(SchemaPrompt, line) {
			t.Errorf("schema prompt missing %q", line)
		}
	}
}
