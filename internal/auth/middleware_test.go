package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:7:operator|rider, k2:12")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected key to be valid")
	}
	if identity.UserID != 7 {
		t.Fatalf("UserID = %d", identity.UserID)
	}
	if !identity.HasRole(RoleOperator) || !identity.HasRole(RoleRider) {
		t.Fatalf("roles = %v", identity.Roles)
	}

	rider, ok := validator.Validate(context.Background(), "k2")
	if !ok || rider.UserID != 12 || rider.HasRole(RoleOperator) || !rider.HasRole(RoleRider) {
		t.Fatalf("rider identity = %+v, %v", rider, ok)
	}
	if _, ok := validator.Validate(context.Background(), "nope"); ok {
		t.Fatal("unknown key accepted")
	}
}

func TestStaticAPIKeyValidatorRejectsBadSpec(t *testing.T) {
	for _, spec := range []string{"invalid", "k1:abc", "k1:0", ":5", "k1:5:|"} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Fatalf("expected parse error for %q", spec)
		}
	}
}

func TestMiddlewareRequiresKey(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:1")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error_code"] != "UNAUTHORIZED" || body["message"] != "missing API key" {
		t.Fatalf("body = %v", body)
	}
}

func TestMiddlewareRejectsUnknownKey(t *testing.T) {
	validator, _ := NewStaticAPIKeyValidator("k1:1")
	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:42")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(nil, validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if identity.UserID != 42 {
			t.Fatalf("UserID = %d", identity.UserID)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.Header.Set("Authorization", "Bearer k1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMiddlewareAcceptsLowercaseBearerScheme(t *testing.T) {
	validator, _ := NewStaticAPIKeyValidator("k1:5")
	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.Header.Set("Authorization", "bearer k1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMiddlewareRefusesConflictingKeys(t *testing.T) {
	validator, _ := NewStaticAPIKeyValidator("k1:1,k2:2")
	var logs bytes.Buffer
	handler := Middleware(slog.New(slog.NewJSONHandler(&logs, nil)), validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.Header.Set("X-API-Key", "k1")
	req.Header.Set("Authorization", "Bearer k2")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got != `Bearer realm="busassist"` {
		t.Fatalf("WWW-Authenticate = %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.Contains(body["message"].(string), "different keys") {
		t.Fatalf("body = %v", body)
	}
	if !strings.Contains(logs.String(), `"reason":"conflicting"`) {
		t.Fatalf("logs = %s", logs.String())
	}
}

func TestMiddlewareLogsFingerprintNotKey(t *testing.T) {
	validator, _ := NewStaticAPIKeyValidator("k1:1")
	var logs bytes.Buffer
	handler := Middleware(slog.New(slog.NewJSONHandler(&logs, nil)), validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/chatlogs", nil)
	req.Header.Set("X-API-Key", "stolen-rider-key")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(logs.Bytes(), &entry); err != nil {
		t.Fatalf("decode log: %v (%s)", err, logs.String())
	}
	if strings.Contains(logs.String(), "stolen-rider-key") {
		t.Fatalf("raw key logged: %s", logs.String())
	}
	if entry["key_fingerprint"] != fingerprint("stolen-rider-key") || len(entry["key_fingerprint"].(string)) != 8 {
		t.Fatalf("entry = %v", entry)
	}
	if entry["reason"] != "invalid" || entry["path"] != "/v1/chatlogs" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestMiddlewareSameKeyInBothHeaders(t *testing.T) {
	validator, _ := NewStaticAPIKeyValidator("k1:3")
	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())
		if identity.UserID != 3 {
			t.Fatalf("UserID = %d", identity.UserID)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.Header.Set("X-API-Key", "k1")
	req.Header.Set("Authorization", "Bearer k1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}
