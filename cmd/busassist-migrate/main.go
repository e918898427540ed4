package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/busassist/busassist/internal/config"
	"github.com/busassist/busassist/internal/db"
	"github.com/busassist/busassist/internal/migrations"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	flag.Parse()

	cfg, err := config.LoadFromEnv("busassist-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	dialect, err := db.ParseDialect(cfg.DB.Driver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	handle, err := db.Open(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = handle.Close() }()

	runner := migrations.NewRunner(dialect)
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, handle, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s) on %s\n", applied, dialect)
	case "down":
		applied, err := runner.Down(ctx, handle, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s) on %s\n", applied, dialect)
	case "status":
		pending, err := runner.Pending(ctx, handle)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration status failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d pending migration(s) on %s: %v\n", len(pending), dialect, pending)
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}
}
