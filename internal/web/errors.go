package web

// errors.go turns failures into responses. The technical error is logged
// with the request ID and the client gets the mapped core.UserMessage, as
// JSON for API callers or as an HTML fragment for browsers.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/JonMunkholm/portfolio-import/internal/logging"
	"github.com/JonMunkholm/portfolio-import/internal/web/templates"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user message with statusCode.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statusCode)
		if err := templates.ErrorAlert(userMsg).Render(r.Context(), w); err != nil {
			logger.Error("render error alert", "error", err)
		}
		return
	}

	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// writeError reports a failure described by message.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	respondError(w, r, errors.New(message), statusCode)
}

// respondRenderError logs a template failure after the status was written.
func respondRenderError(r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("render result page", "error", err)
}

// wantsHTML reports whether the client asked for an HTML page or an HTMX
// fragment instead of JSON.
func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
