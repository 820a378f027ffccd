package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainErrors "github.com/ledgerline/finance-tracker-backend/internal/domain/errors"
)

// ErrorResponse is the wire shape of every error the API returns.
type ErrorResponse struct {
	Error struct {
		Type    string                 `json:"type"`
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

// writeError maps domain errors to HTTP responses. Unknown errors become
// opaque 500s; their detail stays in the logs.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *domainErrors.AppError
	if !errors.As(err, &appErr) {
		logger.ErrorContext(r.Context(), "unhandled error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		appErr = domainErrors.NewInternalError("internal server error")
	}

	if appErr.StatusCode >= 500 {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("code", appErr.Code),
			slog.String("error", appErr.Error()))
	}

	var resp ErrorResponse
	resp.Error.Type = string(appErr.Type)
	resp.Error.Code = appErr.Code
	resp.Error.Message = appErr.Message
	resp.Error.Details = appErr.Details

	writeJSON(w, appErr.StatusCode, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
