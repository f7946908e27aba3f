package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/utafrali/contactbook/pkg/errors"
	"github.com/utafrali/contactbook/pkg/logger"
	"github.com/utafrali/contactbook/pkg/validator"
)

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Detail    string            `json:"detail"`
	Code      string            `json:"code,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// MessageResponse is the JSON body for operations that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes {"message": msg} with the given status code.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MessageResponse{Message: msg})
}

// WriteError writes the client view of err from apperrors.FromError. Server
// errors are logged with the request-scoped logger from context when
// RequestLogging set one, otherwise with fallback; their cause is never sent.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	appErr := apperrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		logInternal(l, r, err)
	}

	WriteJSON(w, appErr.Status, ErrorResponse{
		Detail:    appErr.Message,
		Code:      appErr.Code,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	})
}

func logInternal(l *slog.Logger, r *http.Request, err error) {
	l.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}

// WriteValidationError writes a 422 response. Field-level messages are included
// when err is a validator.ValidationError.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Detail: "request validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: valErr.Fields(),
		})
		return
	}

	WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Detail: err.Error(), Code: "INVALID_INPUT"})
}

// ParseID parses a positive integer path parameter. If invalid, it writes a 422
// response with code INVALID_PARAMETER and returns false, signaling the caller
// to return early.
func ParseID(w http.ResponseWriter, param string) (int64, bool) {
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Detail: "invalid id: " + param,
			Code:   "INVALID_PARAMETER",
		})
		return 0, false
	}
	return id, true
}
