package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/busassist/busassist/internal/config"
)

const pingTimeout = 5 * time.Second

// Open returns a pooled handle for the configured transit store and verifies
// it with a ping.
func Open(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", dialect, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}

	return db, nil
}

// BuildDSN returns cfg.DSN when set, otherwise assembles one from the
// discrete host/port/user/password/name parameters.
func BuildDSN(cfg config.DBConfig) (string, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return "", err
	}
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	switch dialect {
	case DialectDuckDB:
		// An empty name opens an in-memory database.
		return cfg.Name, nil
	case DialectMySQL:
		if cfg.Host == "" || cfg.Name == "" {
			return "", fmt.Errorf("mysql dsn or DB_HOST and DB_NAME are required")
		}
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(portOrDefault(cfg.Port, 3306)))
		mc.DBName = cfg.Name
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	default:
		if cfg.Host == "" || cfg.Name == "" {
			return "", fmt.Errorf("postgres dsn or DB_HOST and DB_NAME are required")
		}
		u := url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(portOrDefault(cfg.Port, 5432))),
			Path:     "/" + cfg.Name,
			RawQuery: "sslmode=disable",
		}
		if cfg.User != "" {
			if cfg.Password != "" {
				u.User = url.UserPassword(cfg.User, cfg.Password)
			} else {
				u.User = url.User(cfg.User)
			}
		}
		return u.String(), nil
	}
}

func portOrDefault(port, fallback int) int {
	if port > 0 {
		return port
	}
	return fallback
}
