package busassistctl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	UserID     int64
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

type chatRequest struct {
	UserID    int64  `json:"user_id,omitempty"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	SQLQuery    string `json:"sql_query"`
	BotResponse string `json:"bot_response"`
	SessionID   string `json:"session_id"`
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("busassistctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "busassist API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	userID := fs.Int64("user-id", defaults.UserID, "user id sent with chat requests (ignored when the key carries one)")
	sessionID := fs.String("session-id", "", "conversation session id")
	showSQL := fs.Bool("show-sql", false, "print the generated SQL above each reply")
	limit := fs.Int("limit", 20, "row limit for the chatlogs command")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 60s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}
	api := &apiClient{http: client, baseURL: strings.TrimRight(*baseURL, "/"), apiKey: strings.TrimSpace(*apiKey)}

	command := strings.TrimSpace(fs.Arg(0))
	rest := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
	switch command {
	case "health":
		return api.print(ctx, stdout, stderr, http.MethodGet, "/v1/health", nil)
	case "ready":
		return api.print(ctx, stdout, stderr, http.MethodGet, "/v1/ready", nil)
	case "chatlogs":
		query := url.Values{}
		query.Set("limit", strconv.Itoa(*limit))
		if *userID > 0 {
			query.Set("user_id", strconv.FormatInt(*userID, 10))
		}
		return api.print(ctx, stdout, stderr, http.MethodGet, "/v1/chatlogs?"+query.Encode(), nil)
	case "preview":
		if rest == "" {
			_, _ = fmt.Fprintln(stderr, "preview requires a question")
			return 2
		}
		return api.print(ctx, stdout, stderr, http.MethodPost, "/v1/chat/sql", chatRequest{UserID: *userID, Message: rest, SessionID: *sessionID})
	case "chat":
		if rest == "" {
			_, _ = fmt.Fprintln(stderr, "chat requires a message")
			return 2
		}
		return api.print(ctx, stdout, stderr, http.MethodPost, "/chat", chatRequest{UserID: *userID, Message: rest, SessionID: *sessionID})
	case "repl":
		in := defaults.Stdin
		if in == nil {
			in = strings.NewReader("")
		}
		return api.repl(ctx, in, stdout, stderr, chatRequest{UserID: *userID, SessionID: *sessionID}, *showSQL)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

type apiClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func (c *apiClient) print(ctx context.Context, stdout, stderr io.Writer, method, path string, body any) int {
	code, responseBody, err := c.do(ctx, method, path, body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

// repl sends one chat request per input line until EOF or "exit". The first
// reply's session id is reused so the server keeps one conversation window.
func (c *apiClient) repl(ctx context.Context, in io.Reader, stdout, stderr io.Writer, base chatRequest, showSQL bool) int {
	scanner := bufio.NewScanner(in)
	_, _ = fmt.Fprint(stdout, "You: ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			break
		}
		if line == "" {
			_, _ = fmt.Fprint(stdout, "You: ")
			continue
		}

		request := base
		request.Message = line
		code, responseBody, err := c.do(ctx, http.MethodPost, "/chat", request)
		switch {
		case err != nil:
			_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		case code >= 400:
			_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		default:
			var response chatResponse
			if err := json.Unmarshal(responseBody, &response); err != nil {
				_, _ = fmt.Fprintf(stderr, "decode reply: %v\n", err)
				break
			}
			if base.SessionID == "" {
				base.SessionID = response.SessionID
			}
			if showSQL {
				_, _ = fmt.Fprintf(stdout, "SQL: %s\n", response.SQLQuery)
			}
			_, _ = fmt.Fprintf(stdout, "Bot: %s\n", response.BotResponse)
		}
		_, _ = fmt.Fprint(stdout, "You: ")
	}
	_, _ = fmt.Fprintln(stdout)
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintf(stderr, "read input: %v\n", err)
		return 1
	}
	return 0
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: busassistctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health            GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready             GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  chat <message>    POST /chat")
	_, _ = fmt.Fprintln(w, "  preview <message> POST /v1/chat/sql")
	_, _ = fmt.Fprintln(w, "  chatlogs          GET /v1/chatlogs")
	_, _ = fmt.Fprintln(w, "  repl              interactive chat on stdin")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
