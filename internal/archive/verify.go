package archive

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/busassist/busassist/internal/storage"
)

// Summary describes what a set of archive objects holds.
type Summary struct {
	Files       int
	Rows        int64
	FirstChatID int64
	LastChatID  int64
	Users       int64
}

// Verifier reads archived parquet objects back through an embedded DuckDB.
type Verifier struct {
	Store storage.ObjectStore
}

func NewVerifier(store storage.ObjectStore) *Verifier {
	return &Verifier{Store: store}
}

// VerifyAll summarizes every object under the chat log prefix.
func (v *Verifier) VerifyAll(ctx context.Context) (Summary, error) {
	if v.Store == nil {
		return Summary{}, fmt.Errorf("object store is required")
	}
	infos, err := v.Store.List(ctx, storage.ChatlogPrefix)
	if err != nil {
		return Summary{}, fmt.Errorf("list archive objects: %w", err)
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if _, _, ok := storage.ParseChatlogArchivePath(info.Key); ok {
			keys = append(keys, info.Key)
		}
	}
	return v.Verify(ctx, keys)
}

func (v *Verifier) Verify(ctx context.Context, keys []string) (Summary, error) {
	if len(keys) == 0 {
		return Summary{}, nil
	}
	if v.Store == nil {
		return Summary{}, fmt.Errorf("object store is required")
	}

	workDir, err := os.MkdirTemp("", "busassist-archive-")
	if err != nil {
		return Summary{}, fmt.Errorf("create verify temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPaths := make([]string, 0, len(keys))
	for index, key := range keys {
		reader, err := v.Store.Get(ctx, key)
		if err != nil {
			return Summary{}, fmt.Errorf("get object %q: %w", key, err)
		}
		localPath := filepath.Join(workDir, fmt.Sprintf("chatlogs_%d.parquet", index))
		if err := writeFile(localPath, reader); err != nil {
			_ = reader.Close()
			return Summary{}, fmt.Errorf("write local parquet file %q: %w", localPath, err)
		}
		if err := reader.Close(); err != nil {
			return Summary{}, fmt.Errorf("close object %q: %w", key, err)
		}
		localPaths = append(localPaths, localPath)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return Summary{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	summary := Summary{Files: len(keys)}
	row := db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*), COALESCE(MIN(chat_id), 0), COALESCE(MAX(chat_id), 0), COUNT(DISTINCT user_id) FROM read_parquet(%s)`,
		quoteStringArray(localPaths),
	))
	if err := row.Scan(&summary.Rows, &summary.FirstChatID, &summary.LastChatID, &summary.Users); err != nil {
		return Summary{}, fmt.Errorf("summarize archive: %w", err)
	}
	return summary, nil
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func writeFile(path string, reader io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(file, reader); err != nil {
		return err
	}
	return nil
}
