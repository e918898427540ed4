package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/busassist/busassist/internal/observability"
)

const DefaultTimeout = 10 * time.Second

// Checker vets SQL text before it reaches the database.
type Checker interface {
	Check(sqlText string) error
}

type Option func(*Executor)

func WithTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func WithChecker(checker Checker) Option {
	return func(e *Executor) {
		e.checker = checker
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Executor runs generated SQL against the transit database.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	checker Checker
	logger  *slog.Logger
}

func NewExecutor(db *sql.DB, opts ...Option) *Executor {
	e := &Executor{db: db, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute never returns a Go error. Rejections, driver failures and timeouts
// all come back as a Result carrying the error text.
func (e *Executor) Execute(ctx context.Context, sqlText string) Result {
	start := time.Now()
	if e.checker != nil {
		if err := e.checker.Check(sqlText); err != nil {
			observability.IncrementQueryRejected()
			e.logger.WarnContext(ctx, "generated sql rejected", "error", err.Error())
			return Result{Error: err.Error(), Duration: time.Since(start)}
		}
	}

	statement := stripTrailingSemicolons(sqlText)
	if statement == "" {
		observability.IncrementQueryError()
		return Result{Error: "sql is required", Duration: time.Since(start)}
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.query(queryCtx, statement)
	if err != nil {
		observability.IncrementQueryError()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("query timed out after %s", e.timeout)
		}
		e.logger.WarnContext(ctx, "query execution failed", "error", err.Error())
		return Result{Error: err.Error(), Duration: time.Since(start)}
	}
	return Result{Rows: rows, Duration: time.Since(start)}
}

func (e *Executor) query(ctx context.Context, statement string) ([]Row, error) {
	if e.db == nil {
		return nil, fmt.Errorf("database is not configured")
	}
	rows, err := e.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, buildRow(columns, normalizeValues(values)))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// buildRow collapses repeated column names; the last value wins while the
// first position is kept.
func buildRow(columns []string, values []any) Row {
	row := Row{Columns: make([]string, 0, len(columns)), Values: make([]any, 0, len(values))}
	seen := make(map[string]int, len(columns))
	for i, column := range columns {
		if idx, ok := seen[column]; ok {
			row.Values[idx] = values[i]
			continue
		}
		seen[column] = len(row.Columns)
		row.Columns = append(row.Columns, column)
		row.Values = append(row.Values, values[i])
	}
	return row
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			normalized[i] = typed.Format(time.DateTime)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
