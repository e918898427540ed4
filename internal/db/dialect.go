package db

import (
	"fmt"
	"strings"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectDuckDB   Dialect = "duckdb"
)

// ParseDialect defaults to MySQL, the store the DB_* settings describe.
func ParseDialect(value string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(value))) {
	case DialectPostgres:
		return DialectPostgres, nil
	case DialectMySQL, "":
		return DialectMySQL, nil
	case DialectDuckDB:
		return DialectDuckDB, nil
	default:
		return "", fmt.Errorf("unsupported db driver %q", value)
	}
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectMySQL:
		return "mysql"
	case DialectDuckDB:
		return "duckdb"
	default:
		return "pgx"
	}
}

// Rebind rewrites $n placeholders for dialects that only accept '?'.
// Placeholders must appear in ascending order, which holds for every
// statement in this module.
func (d Dialect) Rebind(query string) string {
	if d != DialectMySQL {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			b.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(query[i])
			continue
		}
		b.WriteByte('?')
		i = j - 1
	}
	return b.String()
}

func (d Dialect) String() string {
	return string(d)
}
