package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
)

// Codes renvoyés dans le champ "code" des réponses d'erreur.
const (
	CodeInvalidCursor   = "INVALID_CURSOR"
	CodeInvalidLimit    = "INVALID_LIMIT"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeNotFound        = "NOT_FOUND"
	CodeMediaNotReady   = "MEDIA_NOT_READY"
	CodeInternal        = "INTERNAL"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// apiError lets the adapter raise transport errors that have no domain sentinel.
type apiError struct {
	status int
	code   string
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &apiError{status: http.StatusBadRequest, code: CodeInvalidArgument, msg: msg}
}

var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidCursor, http.StatusBadRequest, CodeInvalidCursor},
	{domain.ErrInvalidLimit, http.StatusBadRequest, CodeInvalidLimit},
	{domain.ErrInvalidMode, http.StatusBadRequest, CodeInvalidArgument},
	{domain.ErrInvalidType, http.StatusBadRequest, CodeInvalidArgument},
	{domain.ErrInvalidVisibility, http.StatusBadRequest, CodeInvalidArgument},
	{domain.ErrAuthorRequired, http.StatusBadRequest, CodeInvalidArgument},
	{domain.ErrProfileRequired, http.StatusBadRequest, CodeInvalidArgument},
	{domain.ErrEmptyPost, http.StatusBadRequest, CodeInvalidArgument},
	{domain.ErrMediaNotFound, http.StatusBadRequest, CodeInvalidArgument},
	{domain.ErrMediaFailed, http.StatusBadRequest, CodeInvalidArgument},
	{domain.ErrViewerRequired, http.StatusUnauthorized, CodeUnauthenticated},
	{domain.ErrPostNotFound, http.StatusNotFound, CodeNotFound},
	{domain.ErrMediaNotReady, http.StatusConflict, CodeMediaNotReady},
}

func classify(err error) (int, string, string) {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status, ae.code, ae.msg
	}
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.code, err.Error()
		}
	}
	return http.StatusInternalServerError, CodeInternal, "internal error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
