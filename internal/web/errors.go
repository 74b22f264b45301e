package web

// errors.go turns run errors into HTTP responses. The technical error is
// logged with the request id; the client gets the mapped user message, its
// code, and the line and field when the error has them.

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/csvload/internal/core"
	"github.com/JonMunkholm/csvload/internal/logging"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
	Field   string `json:"field,omitempty"`

	// Result holds the counts up to the failing line, for failed runs.
	Result *core.Result `json:"result,omitempty"`
}

// respondError writes err with the status statusFor picks. partial is the
// result of a failed run, if there was one.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, partial *core.Result) {
	status := statusFor(err)
	msg := core.MapError(err)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		msg = core.UserMessage{
			Message: "File is too large",
			Action:  fmt.Sprintf("Split the file into parts smaller than %d bytes", tooLarge.Limit),
			Code:    "UPL001",
		}
	}

	logger := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request error")
	} else {
		logger.Warn("request error")
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Line:    msg.Line,
		Field:   msg.Field,
		Result:  partial,
	}
	// Only client errors expose the technical detail.
	if status < http.StatusInternalServerError {
		resp.Error = err.Error()
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, resp)
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnknownLoader):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}

	switch core.KindOf(err) {
	case core.KindDataFormat, core.KindValidation, core.KindEncoding, core.KindFile:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError writes a plain error that has no run behind it, such as a bad
// query parameter.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Message: message, Code: code})
}
