package migrations

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/busassist/busassist/internal/db"
)

func TestLoadMigrationsSortsAndPairsUpDown(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000002_two.up.sql":   {Data: []byte("SELECT 2;")},
		"sql/000002_two.down.sql": {Data: []byte("SELECT -2;")},
		"sql/000001_one.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/000001_one.down.sql": {Data: []byte("SELECT -1;")},
	}

	items, err := loadMigrations(fsys, "sql")
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d", len(items))
	}
	if items[0].Version != 1 || items[1].Version != 2 {
		t.Fatalf("unexpected migration order: %+v", items)
	}
}

func TestLoadMigrationsErrorsWhenDownMissing(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_one.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := loadMigrations(fsys, "sql")
	if err == nil {
		t.Fatal("expected error for missing down migration")
	}
	if !strings.Contains(err.Error(), "missing down SQL") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEveryDialectShipsTheSameVersions(t *testing.T) {
	var reference []int64
	for _, dialect := range []db.Dialect{db.DialectPostgres, db.DialectMySQL, db.DialectDuckDB} {
		items, err := loadMigrations(embeddedFS, "sql/"+string(dialect))
		if err != nil {
			t.Fatalf("loadMigrations(%s) error = %v", dialect, err)
		}
		versions := make([]int64, 0, len(items))
		for _, item := range items {
			versions = append(versions, item.Version)
		}
		if reference == nil {
			reference = versions
			continue
		}
		if len(versions) != len(reference) {
			t.Fatalf("%s versions = %v, want %v", dialect, versions, reference)
		}
		for i := range versions {
			if versions[i] != reference[i] {
				t.Fatalf("%s versions = %v, want %v", dialect, versions, reference)
			}
		}
	}
}

func TestTransitSchemaCreatesEveryPromptTable(t *testing.T) {
	required := []string{
		"CREATE TABLE users",
		"CREATE TABLE busstops",
		"CREATE TABLE routes",
		"CREATE TABLE buses",
		"CREATE TABLE drivers",
		"CREATE TABLE tickets",
		"CREATE TABLE notifications",
		"CREATE TABLE routestops",
		"region_of_commute",
		"destination_stop_id",
		"stop_order",
	}
	for _, dialect := range []string{"postgres", "mysql", "duckdb"} {
		body, err := embeddedFS.ReadFile("sql/" + dialect + "/000001_transit_schema.up.sql")
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		for _, snippet := range required {
			if !strings.Contains(string(body), snippet) {
				t.Fatalf("%s transit migration missing %q", dialect, snippet)
			}
		}
		chatlogs, err := embeddedFS.ReadFile("sql/" + dialect + "/000002_chatlogs.up.sql")
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if !strings.Contains(string(chatlogs), "CREATE TABLE chatlogs") {
			t.Fatalf("%s chatlogs migration missing table", dialect)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	script := `
-- leading comment; with semicolon
CREATE TABLE a (x TEXT DEFAULT 'a;b');
INSERT INTO a VALUES ('it''s');

DROP TABLE b`
	statements := splitStatements(script)
	want := []string{
		"CREATE TABLE a (x TEXT DEFAULT 'a;b')",
		"INSERT INTO a VALUES ('it''s')",
		"DROP TABLE b",
	}
	if len(statements) != len(want) {
		t.Fatalf("statements = %q", statements)
	}
	for i := range want {
		if statements[i] != want[i] {
			t.Fatalf("statements[%d] = %q, want %q", i, statements[i], want[i])
		}
	}
}

func TestUpUsesDialectPlaceholders(t *testing.T) {
	handle, mock := newSQLMock(t)
	runner := &Runner{
		fsys: fstest.MapFS{
			"sql/mysql/000001_one.up.sql":   {Data: []byte("CREATE TABLE one (id INT);\nCREATE TABLE two (id INT);")},
			"sql/mysql/000001_one.down.sql": {Data: []byte("DROP TABLE two;\nDROP TABLE one;")},
		},
		dir:     "sql/mysql",
		dialect: db.DialectMySQL,
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS busassist_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM busassist_schema_migrations ORDER BY version ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE one (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE two (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO busassist_schema_migrations (version) VALUES (?)")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := runner.Up(context.Background(), handle, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d", applied)
	}
	assertSQLMock(t, mock)
}

func TestDownSkipsWhenNothingApplied(t *testing.T) {
	handle, mock := newSQLMock(t)
	runner := NewRunner(db.DialectPostgres)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS busassist_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM busassist_schema_migrations ORDER BY version DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	rolledBack, err := runner.Down(context.Background(), handle, 1)
	if err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if rolledBack != 0 {
		t.Fatalf("rolledBack = %d", rolledBack)
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	handle, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })
	return handle, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
