package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/busassist/busassist/internal/config"
)

type ctxKey string

const (
	traceIDKey ctxKey = "trace_id"
	sessionKey ctxKey = "chat_session"
)

const redacted = "[redacted]"

// Attribute keys whose values never reach the log sink.
var secretKeys = map[string]struct{}{
	"api_key":       {},
	"authorization": {},
	"password":      {},
	"dsn":           {},
	"secret_key":    {},
}

type chatSession struct {
	id     string
	userID int64
}

// NewLogger builds the service logger. Records logged with a request context
// pick up the trace and chat session ids stored in it.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{Level: cfg.Observability.LogLevel, ReplaceAttr: redactSecrets}
	var handler slog.Handler
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	return slog.New(contextHandler{Handler: handler}).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}

func redactSecrets(_ []string, attr slog.Attr) slog.Attr {
	if _, ok := secretKeys[strings.ToLower(attr.Key)]; ok && attr.Value.String() != "" {
		return slog.String(attr.Key, redacted)
	}
	return attr
}

type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, record slog.Record) error {
	if ctx == nil {
		return h.Handler.Handle(ctx, record)
	}
	present := map[string]bool{}
	record.Attrs(func(attr slog.Attr) bool {
		present[attr.Key] = true
		return true
	})
	if traceID := TraceIDFromContext(ctx); traceID != "" && !present["trace_id"] {
		record.AddAttrs(slog.String("trace_id", traceID))
	}
	if sessionID, userID, ok := ChatSessionFromContext(ctx); ok {
		if !present["session_id"] {
			record.AddAttrs(slog.String("session_id", sessionID))
		}
		if userID != 0 && !present["user_id"] {
			record.AddAttrs(slog.Int64("user_id", userID))
		}
	}
	return h.Handler.Handle(ctx, record)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(traceIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

// ContextWithChatSession tags ctx with the conversation being served.
func ContextWithChatSession(ctx context.Context, sessionID string, userID int64) context.Context {
	return context.WithValue(ctx, sessionKey, chatSession{id: sessionID, userID: userID})
}

// ChatSessionFromContext returns the session id and rider set by ContextWithChatSession.
func ChatSessionFromContext(ctx context.Context) (string, int64, bool) {
	session, ok := ctx.Value(sessionKey).(chatSession)
	return session.id, session.userID, ok
}
