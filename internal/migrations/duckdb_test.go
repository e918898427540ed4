package migrations

import (
	"context"
	"testing"
	"time"

	"github.com/busassist/busassist/internal/config"
	"github.com/busassist/busassist/internal/db"
)

func TestRunnerAppliesAndRollsBackOnDuckDB(t *testing.T) {
	handle, err := db.Open(context.Background(), config.DBConfig{Driver: "duckdb"})
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	defer func() { _ = handle.Close() }()
	handle.SetMaxOpenConns(1)

	runner := NewRunner(db.DialectDuckDB)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	applied, err := runner.Up(ctx, handle, 0)
	if err != nil {
		t.Fatalf("runner.Up() error = %v", err)
	}
	if applied != 2 {
		t.Fatalf("runner.Up() applied %d migrations, want 2", applied)
	}

	pending, err := runner.Pending(ctx, handle)
	if err != nil {
		t.Fatalf("runner.Pending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %v", pending)
	}

	if _, err := handle.ExecContext(ctx, `INSERT INTO chatlogs (user_id, message_text, response_text) VALUES ($1, $2, $3)`, 1, "hi", "hello"); err != nil {
		t.Fatalf("insert chatlog: %v", err)
	}

	rolledBack, err := runner.Down(ctx, handle, 1)
	if err != nil {
		t.Fatalf("runner.Down() error = %v", err)
	}
	if rolledBack != 1 {
		t.Fatalf("runner.Down() rolled back %d migrations, want 1", rolledBack)
	}

	var count int
	if err := handle.QueryRowContext(ctx, `SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'chatlogs'`).Scan(&count); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if count != 0 {
		t.Fatalf("chatlogs still exists after rollback")
	}
}
