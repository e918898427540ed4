package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/busassist/busassist/internal/observability"
)

type contextKey string

const identityKey contextKey = "rider_identity"

const (
	failureMissing     = "missing"
	failureInvalid     = "invalid"
	failureConflicting = "conflicting"
)

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// Middleware resolves the caller's API key to a rider or operator identity.
// Failed attempts are counted by reason and logged with a key fingerprint.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, reason := extractAPIKey(r)
			if reason == "" {
				if identity, ok := validator.Validate(r.Context(), apiKey); ok {
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
					return
				}
				reason = failureInvalid
			}

			observability.IncrementAuthFailure(reason)
			if logger != nil && reason != failureMissing {
				logger.WarnContext(r.Context(), "rejected API key",
					slog.String("reason", reason),
					slog.String("path", r.URL.Path),
					slog.String("key_fingerprint", fingerprint(apiKey)),
				)
			}
			writeUnauthorized(w, r, reason)
		})
	}
}

// extractAPIKey reads X-API-Key or a bearer token. Sending both with
// different values is refused instead of picking one.
func extractAPIKey(r *http.Request) (string, string) {
	headerKey := strings.TrimSpace(r.Header.Get("X-API-Key"))
	bearer := ""
	if scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " "); ok && strings.EqualFold(scheme, "bearer") {
		bearer = strings.TrimSpace(token)
	}
	switch {
	case headerKey != "" && bearer != "" && headerKey != bearer:
		return headerKey, failureConflicting
	case headerKey != "":
		return headerKey, ""
	case bearer != "":
		return bearer, ""
	default:
		return "", failureMissing
	}
}

func fingerprint(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:4])
}

var failureMessages = map[string]string{
	failureMissing:     "missing API key",
	failureInvalid:     "invalid API key",
	failureConflicting: "X-API-Key and Authorization carry different keys",
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="busassist"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": "UNAUTHORIZED",
		"message":    failureMessages[reason],
		"retryable":  false,
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
