package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/busassist/busassist/internal/auth"
	"github.com/busassist/busassist/internal/chat"
)

const maxChatlogLimit = 100

type chatRequest struct {
	UserID    *int64  `json:"user_id"`
	Message   *string `json:"message"`
	SessionID string  `json:"session_id"`
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (chat.Request, bool) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return chat.Request{}, false
	}
	if body.Message == nil || strings.TrimSpace(*body.Message) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false, nil)
		return chat.Request{}, false
	}

	req := chat.Request{UserID: chat.DefaultUserID, Message: *body.Message, SessionID: strings.TrimSpace(body.SessionID)}
	if body.UserID != nil {
		if *body.UserID < 1 || *body.UserID > math.MaxInt32 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_USER_ID", "user_id must be between 1 and 2147483647", false, nil)
			return chat.Request{}, false
		}
		req.UserID = *body.UserID
	}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		req.UserID = identity.UserID
		if !identity.HasRole(auth.RoleOperator) {
			req.SessionID = scopeSession(identity.UserID, req.SessionID)
		}
	}
	return req, true
}

// scopeSession keeps a rider inside windows under its own user id. Session
// ids returned by an earlier response are already scoped and pass through.
// Operators skip this, which is how a shared console is set up.
func scopeSession(userID int64, sessionID string) string {
	own := fmt.Sprintf("user:%d", userID)
	if sessionID == "" || sessionID == own || strings.HasPrefix(sessionID, own+":") {
		return sessionID
	}
	return own + ":" + sessionID
}

func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat service is not configured", false, nil)
		return
	}
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	resp, err := deps.Chat.Handle(r.Context(), req)
	if err != nil {
		writeChatError(deps.Logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeChatError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status, code, retryable := http.StatusInternalServerError, "INTERNAL", false
	extra := map[string]any{}

	var stageErr *chat.StageError
	if errors.As(err, &stageErr) {
		extra["stage"] = string(stageErr.Stage)
		switch stageErr.Stage {
		case chat.StageReceived:
			if errors.Is(err, chat.ErrMessageRequired) {
				status, code = http.StatusBadRequest, "MESSAGE_REQUIRED"
			}
		case chat.StageSQLGenerated:
			status, code, retryable = http.StatusBadGateway, "GENERATION_FAILED", true
		case chat.StageFormatted:
			status, code, retryable = http.StatusBadGateway, "FORMAT_FAILED", true
		case chat.StageLogged:
			status, code = http.StatusInternalServerError, "LOG_FAILED"
		}
	}
	if logger != nil && status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "chat request failed", "error_code", code, "error", err.Error())
	}
	writeError(r.Context(), w, status, code, err.Error(), retryable, extra)
}

func handlePreviewSQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Previewer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PREVIEW_NOT_CONFIGURED", "sql preview is not configured", false, nil)
		return
	}
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	transcript := ""
	if deps.History != nil {
		transcript = deps.History.Render(chat.SessionKey(req))
	}
	generated, err := deps.Previewer.Generate(r.Context(), transcript, req.Message)
	if err != nil {
		writeChatError(deps.Logger, w, r, &chat.StageError{Stage: chat.StageSQLGenerated, Err: err})
		return
	}

	response := map[string]any{
		"user_message": req.Message,
		"sql_query":    generated.SQL,
		"allowed":      true,
	}
	if deps.Guard != nil {
		if err := deps.Guard.Check(generated.SQL); err != nil {
			response["allowed"] = false
			response["reason"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func handleListChatlogs(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chatlogs == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHATLOGS_NOT_CONFIGURED", "chat log reader is not configured", false, nil)
		return
	}

	userID, err := userFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_USER_ID", err.Error(), false, nil)
		return
	}
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = min(parsed, maxChatlogLimit)
	}

	records, err := deps.Chatlogs.ListForUser(r.Context(), userID, limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "CHATLOGS_FETCH_FAILED", "failed to load chat logs", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "chatlogs": records})
}

// userFromRequest resolves whose history is read. Riders only see their own
// turns; operators and unauthenticated deployments may pass ?user_id=.
func userFromRequest(r *http.Request) (int64, error) {
	requested := chat.DefaultUserID
	if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return 0, fmt.Errorf("user_id must be a positive integer")
		}
		requested = parsed
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity.HasRole(auth.RoleOperator) {
		return requested, nil
	}
	return identity.UserID, nil
}
