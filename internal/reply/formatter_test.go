package reply

import (
	"context"
	"errors"
	"testing"
)

type recordingModel struct {
	prompt string
	text   string
	err    error
}

func (m *recordingModel) Generate(_ context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return m.text, m.err
}

func TestFormatTrimsReplyAndBuildsPrompt(t *testing.T) {
	model := &recordingModel{text: "\n  Bus PB-01-1234 is running on ISBT-Ludhiana.  \n"}
	formatter, err := NewFormatter(model)
	if err != nil {
		t.Fatalf("NewFormatter() error = %v", err)
	}

	results := []map[string]string{{"bus_number": "PB-01-1234"}}
	text, err := formatter.Format(context.Background(), "User: hi\nBot: hello", "Next bus?", results)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if text != "Bus PB-01-1234 is running on ISBT-Ludhiana." {
		t.Fatalf("text = %q", text)
	}
	want := "Conversation so far:\nUser: hi\nBot: hello\n\nUser just asked: Next bus?\nHere are SQL query results:\n" +
		`[{"bus_number":"PB-01-1234"}]` + "\nFormat this as a clear SMS/WhatsApp style reply:"
	if model.prompt != want {
		t.Fatalf("prompt = %q\nwant %q", model.prompt, want)
	}
}

func TestFormatFeedsErrorResultsForward(t *testing.T) {
	model := &recordingModel{text: "Sorry, I could not find that."}
	formatter, _ := NewFormatter(model)

	if _, err := formatter.Format(context.Background(), "", "Next bus?", map[string]string{"error": "no such column"}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "Conversation so far:\n\n\nUser just asked: Next bus?\nHere are SQL query results:\n" +
		`{"error":"no such column"}` + "\nFormat this as a clear SMS/WhatsApp style reply:"
	if model.prompt != want {
		t.Fatalf("prompt = %q", model.prompt)
	}
}

func TestFormatPropagatesModelError(t *testing.T) {
	cause := errors.New("model unavailable")
	formatter, _ := NewFormatter(&recordingModel{err: cause})

	if _, err := formatter.Format(context.Background(), "", "x", []any{}); !errors.Is(err, cause) {
		t.Fatalf("error = %v", err)
	}
}

func TestNewFormatterRequiresModel(t *testing.T) {
	if _, err := NewFormatter(nil); err == nil {
		t.Fatal("expected error")
	}
}
