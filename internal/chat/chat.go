package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/busassist/busassist/internal/chatlog"
	"github.com/busassist/busassist/internal/history"
	"github.com/busassist/busassist/internal/nl2sql"
	"github.com/busassist/busassist/internal/observability"
	"github.com/busassist/busassist/internal/query"
)

const DefaultUserID int64 = 1

var ErrMessageRequired = errors.New("message is required")

type Stage string

const (
	StageReceived     Stage = "received"
	StageSQLGenerated Stage = "sql_generated"
	StageExecuted     Stage = "executed"
	StageFormatted    Stage = "formatted"
	StageLogged       Stage = "logged"
	StageResponded    Stage = "responded"
)

// StageError marks the pipeline stage at which a request failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type Request struct {
	UserID    int64
	Message   string
	SessionID string
}

type Response struct {
	UserMessage string       `json:"user_message"`
	SQLQuery    string       `json:"sql_query"`
	Results     query.Result `json:"results"`
	BotResponse string       `json:"bot_response"`
	SessionID   string       `json:"session_id"`
}

type SQLGenerator interface {
	Generate(ctx context.Context, transcript, userInput string) (nl2sql.Result, error)
}

type QueryExecutor interface {
	Execute(ctx context.Context, sqlText string) query.Result
}

type ReplyFormatter interface {
	Format(ctx context.Context, transcript, userInput string, results any) (string, error)
}

type TurnLogger interface {
	Log(ctx context.Context, record chatlog.Record) error
}

type ContextStore interface {
	Render(sessionID string) string
	Append(sessionID string, turn history.Turn)
}

type Dependencies struct {
	Generator SQLGenerator
	Executor  QueryExecutor
	Formatter ReplyFormatter
	Chatlog   TurnLogger
	History   ContextStore
	Logger    *slog.Logger
}

// Service runs one chat turn through generation, execution, formatting and
// logging.
type Service struct {
	generator SQLGenerator
	executor  QueryExecutor
	formatter ReplyFormatter
	chatlog   TurnLogger
	history   ContextStore
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(deps Dependencies) (*Service, error) {
	switch {
	case deps.Generator == nil:
		return nil, fmt.Errorf("sql generator is required")
	case deps.Executor == nil:
		return nil, fmt.Errorf("query executor is required")
	case deps.Formatter == nil:
		return nil, fmt.Errorf("reply formatter is required")
	case deps.Chatlog == nil:
		return nil, fmt.Errorf("chat logger is required")
	case deps.History == nil:
		return nil, fmt.Errorf("context store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		generator: deps.Generator,
		executor:  deps.Executor,
		formatter: deps.Formatter,
		chatlog:   deps.Chatlog,
		history:   deps.History,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// SessionKey picks the context window for a request.
func SessionKey(req Request) string {
	if id := strings.TrimSpace(req.SessionID); id != "" {
		return id
	}
	userID := req.UserID
	if userID == 0 {
		userID = DefaultUserID
	}
	return fmt.Sprintf("user:%d", userID)
}

func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	resp, err := s.handle(ctx, req)
	if err != nil {
		observability.ObserveChatRequest("failed")
		return Response{}, err
	}
	observability.ObserveChatRequest("ok")
	return resp, nil
}

func (s *Service) handle(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	if strings.TrimSpace(req.Message) == "" {
		return Response{}, &StageError{Stage: StageReceived, Err: ErrMessageRequired}
	}
	if req.UserID == 0 {
		req.UserID = DefaultUserID
	}
	sessionID := SessionKey(req)
	ctx = observability.ContextWithChatSession(ctx, sessionID, req.UserID)
	transcript := s.history.Render(sessionID)
	start = s.mark(ctx, StageReceived, start)

	generated, err := s.generator.Generate(ctx, transcript, req.Message)
	if err != nil {
		return Response{}, &StageError{Stage: StageSQLGenerated, Err: err}
	}
	start = s.mark(ctx, StageSQLGenerated, start, "sql", generated.SQL)

	results := s.executor.Execute(ctx, generated.SQL)
	start = s.mark(ctx, StageExecuted, start, "rows", len(results.Rows), "query_error", results.Error)

	reply, err := s.formatter.Format(ctx, transcript, req.Message, results)
	if err != nil {
		return Response{}, &StageError{Stage: StageFormatted, Err: err}
	}
	s.history.Append(sessionID, history.Turn{UserInput: req.Message, BotResponse: reply})
	start = s.mark(ctx, StageFormatted, start)

	if err := s.chatlog.Log(ctx, chatlog.Record{
		UserID:       req.UserID,
		MessageText:  req.Message,
		ResponseText: reply,
		CreatedAt:    s.now(),
	}); err != nil {
		return Response{}, &StageError{Stage: StageLogged, Err: err}
	}
	start = s.mark(ctx, StageLogged, start)

	resp := Response{
		UserMessage: req.Message,
		SQLQuery:    generated.SQL,
		Results:     results,
		BotResponse: reply,
		SessionID:   sessionID,
	}
	s.mark(ctx, StageResponded, start)
	return resp, nil
}

func (s *Service) mark(ctx context.Context, stage Stage, start time.Time, attrs ...any) time.Time {
	elapsed := time.Since(start)
	observability.ObserveStage(string(stage), elapsed)
	s.logger.DebugContext(ctx, "chat stage complete", append([]any{"stage", string(stage), "elapsed_ms", elapsed.Milliseconds()}, attrs...)...)
	return time.Now()
}
