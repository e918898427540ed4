package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/busassist/busassist/internal/db"
)

// Record is one persisted chat turn.
type Record struct {
	ChatID       int64     `json:"chat_id"`
	UserID       int64     `json:"user_id"`
	MessageText  string    `json:"message_text"`
	ResponseText string    `json:"response_text"`
	CreatedAt    time.Time `json:"created_at"`
}

type dbTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Repository struct {
	db      *sql.DB
	dialect db.Dialect
	now     func() time.Time
}

func NewRepository(handle *sql.DB, dialect db.Dialect) *Repository {
	return &Repository{db: handle, dialect: dialect, now: time.Now}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping transit db: %w", err)
	}
	return nil
}

// Log inserts one turn in its own transaction. A zero CreatedAt is stamped
// with the current time.
func (r *Repository) Log(ctx context.Context, record Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.insert(ctx, tx, record); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat log: %w", err)
	}
	return nil
}

func (r *Repository) insert(ctx context.Context, q dbTX, record Record) error {
	query := r.dialect.Rebind(`
INSERT INTO chatlogs (user_id, message_text, response_text, created_at)
VALUES ($1, $2, $3, $4)`)
	if _, err := q.ExecContext(ctx, query, record.UserID, record.MessageText, record.ResponseText, record.CreatedAt); err != nil {
		return fmt.Errorf("insert chat log: %w", err)
	}
	return nil
}

// ListSince returns up to limit records with chat_id greater than afterChatID,
// oldest first.
func (r *Repository) ListSince(ctx context.Context, afterChatID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := r.dialect.Rebind(`
SELECT chat_id, user_id, message_text, response_text, created_at
FROM chatlogs
WHERE chat_id > $1
ORDER BY chat_id ASC
LIMIT $2`)
	rows, err := r.db.QueryContext(ctx, query, afterChatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]Record, 0)
	for rows.Next() {
		var record Record
		if err := rows.Scan(&record.ChatID, &record.UserID, &record.MessageText, &record.ResponseText, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat log row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat log rows: %w", err)
	}
	return records, nil
}

// ListForUser returns the newest turns of one user, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.dialect.Rebind(`
SELECT chat_id, user_id, message_text, response_text, created_at
FROM chatlogs
WHERE user_id = $1
ORDER BY chat_id DESC
LIMIT $2`)
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user chat logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]Record, 0)
	for rows.Next() {
		var record Record
		if err := rows.Scan(&record.ChatID, &record.UserID, &record.MessageText, &record.ResponseText, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat log row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat log rows: %w", err)
	}
	return records, nil
}

// PurgeArchived deletes rows up to and including throughChatID that were
// created before cutoff. Callers pass the highest id already archived.
func (r *Repository) PurgeArchived(ctx context.Context, throughChatID int64, cutoff time.Time) (int64, error) {
	if throughChatID <= 0 {
		return 0, nil
	}
	query := r.dialect.Rebind(`
DELETE FROM chatlogs
WHERE chat_id <= $1 AND created_at < $2`)
	result, err := r.db.ExecContext(ctx, query, throughChatID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge archived chat logs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge archived chat logs: %w", err)
	}
	return deleted, nil
}
