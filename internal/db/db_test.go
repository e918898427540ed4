package db

import (
	"context"
	"strings"
	"testing"

	"github.com/busassist/busassist/internal/config"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DBConfig{Driver: "oracle", DSN: "x"})
	if err == nil || !strings.Contains(err.Error(), "unsupported db driver") {
		t.Fatalf("error = %v", err)
	}
}

func TestOpenRequiresConnectionParameters(t *testing.T) {
	if _, err := Open(context.Background(), config.DBConfig{Driver: "postgres"}); err == nil {
		t.Fatal("expected error for empty postgres parameters")
	}
	if _, err := Open(context.Background(), config.DBConfig{Driver: "mysql"}); err == nil {
		t.Fatal("expected error for empty mysql parameters")
	}
}

func TestOpenInMemoryDuckDB(t *testing.T) {
	handle, err := Open(context.Background(), config.DBConfig{Driver: "duckdb"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = handle.Close() }()

	var one int
	if err := handle.QueryRow("SELECT 1").Scan(&one); err != nil {
		t.Fatalf("QueryRow() error = %v", err)
	}
	if one != 1 {
		t.Fatalf("one = %d", one)
	}
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DBConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  config.DBConfig{Driver: "postgres", DSN: "postgres://a@b/c", Host: "ignored", Name: "ignored"},
			want: "postgres://a@b/c",
		},
		{
			name: "postgres from parts",
			cfg:  config.DBConfig{Driver: "postgres", Host: "db", User: "bus", Password: "p@ss", Name: "punjab_transport"},
			want: "postgres://bus:p%40ss@db:5432/punjab_transport?sslmode=disable",
		},
		{
			name: "mysql from parts",
			cfg:  config.DBConfig{Driver: "mysql", Host: "localhost", Port: 3307, User: "root", Password: "secret", Name: "punjab_transport"},
			want: "root:secret@tcp(localhost:3307)/punjab_transport?parseTime=true",
		},
		{
			name: "duckdb file",
			cfg:  config.DBConfig{Driver: "duckdb", Name: "transit.duckdb"},
			want: "transit.duckdb",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildDSN(tt.cfg)
			if err != nil {
				t.Fatalf("BuildDSN() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("BuildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildDSNFromSourceEnvironment(t *testing.T) {
	cfg, err := config.Load("busassist-api", func(key string) (string, bool) {
		value, ok := map[string]string{
			"DB_HOST":        "localhost",
			"DB_USER":        "root",
			"DB_PASSWORD":    "secret",
			"DB_NAME":        "punjab_transport",
			"GEMINI_API_KEY": "g-key",
		}[key]
		return value, ok
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, err := BuildDSN(cfg.DB)
	if err != nil {
		t.Fatalf("BuildDSN() error = %v", err)
	}
	if got != "root:secret@tcp(localhost:3306)/punjab_transport?parseTime=true" {
		t.Fatalf("BuildDSN() = %q", got)
	}
}

func TestDialectRebind(t *testing.T) {
	query := "INSERT INTO chatlogs (user_id, message_text) VALUES ($1, $2) -- costs $ 5"
	if got := DialectPostgres.Rebind(query); got != query {
		t.Fatalf("postgres Rebind() = %q", got)
	}
	want := "INSERT INTO chatlogs (user_id, message_text) VALUES (?, ?) -- costs $ 5"
	if got := DialectMySQL.Rebind(query); got != want {
		t.Fatalf("mysql Rebind() = %q", got)
	}
}

func TestParseDialect(t *testing.T) {
	for input, want := range map[string]Dialect{"": DialectMySQL, "Postgres": DialectPostgres, "MySQL": DialectMySQL, " duckdb ": DialectDuckDB} {
		got, err := ParseDialect(input)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %q, %v", input, got, err)
		}
	}
	if DialectMySQL.DriverName() != "mysql" || DialectPostgres.DriverName() != "pgx" || DialectDuckDB.DriverName() != "duckdb" {
		t.Fatal("unexpected driver names")
	}
}
