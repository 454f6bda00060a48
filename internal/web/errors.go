package web

// errors.go turns service errors into HTTP responses.
//
// The technical error is logged with the request id; the client gets the
// mapped user message and code, as JSON for API callers and as an alert
// fragment for HTMX requests from the sync page.

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/dayroster/internal/core"
	"github.com/JonMunkholm/dayroster/internal/logging"
	"github.com/JonMunkholm/dayroster/internal/web/views"
)

var (
	errRateLimited  = errors.New("rate limit exceeded")
	errBadParameter = errors.New("invalid request parameter")
)

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped message with statusFor(err).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := statusFor(err)
	userMsg := core.MapError(err)
	s.logRequestError(r, err, statusCode, userMsg.Code)

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statusCode)
		views.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w)
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, statusCode)
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", statusCode)
	}
}

func (s *Server) logRequestError(r *http.Request, err error, statusCode int, code string) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", code,
	)
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var ve *core.ValidationError
	switch {
	case errors.Is(err, core.ErrSyncInProgress), errors.Is(err, core.ErrMappingExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrRunNotFound), errors.Is(err, core.ErrMappingNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrCoordinatorNotFound), errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNoFile), errors.Is(err, errBadParameter):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSyncCancelled), errors.Is(err, core.ErrMappingsUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	}

	code := core.MapError(err).Code
	switch {
	case strings.HasPrefix(code, "FILE"), code == "SYNC005":
		return http.StatusBadRequest
	case code == "SYNC006", code == "DB001", code == "DB002":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client should get a JSON error body.
// API routes always do.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
