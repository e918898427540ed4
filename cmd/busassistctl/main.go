package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/busassist/busassist/internal/cli/busassistctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("BUSASSIST_CLI_TIMEOUT")), 60*time.Second)
	options := busassistctl.Options{
		BaseURL: envOr("BUSASSIST_API_URL", "http://localhost:8080"),
		APIKey:  strings.TrimSpace(os.Getenv("BUSASSIST_API_KEY")),
		UserID:  parseUserID(strings.TrimSpace(os.Getenv("BUSASSIST_USER_ID"))),
		Timeout: timeout,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := busassistctl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseUserID(raw string) int64 {
	if raw == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		_, _ = fmt.Fprintf(os.Stderr, "invalid BUSASSIST_USER_ID %q; ignoring\n", raw)
		return 0
	}
	return parsed
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid BUSASSIST_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
