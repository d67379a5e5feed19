package web

// errors.go provides unified error response handling for the web layer.
//
// The technical error is logged with the request ID; the client gets the
// core.MapError message as an HTML fragment (HTMX), JSON (API) or a full page.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/osfidash/internal/core"
	"github.com/JonMunkholm/osfidash/internal/logging"
	"github.com/JonMunkholm/osfidash/internal/web/templates"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse is the JSON body of API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error from the core.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNoDataset):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrMissingDiscriminatorColumn),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrUnsupportedEncoding):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNoFile):
		return http.StatusBadRequest
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	if core.IsUserFacing(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the user-facing message in the format
// the client expects. A zero status is derived from err.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	ue := core.NewUserError(err)
	msg := ue.User

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Technical.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
	case wantsJSON(r):
		writeJSON(w, status, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		page := templates.Layout(templates.LayoutParams{
			Title:      "Error",
			HasDataset: true,
			Active:     "error",
		}, templates.ErrorAlert(msg.Message, msg.Action, msg.Code))
		_ = page.Render(r.Context(), w)
	}
}
