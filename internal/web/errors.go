package web

// errors.go provides unified error response handling for the web layer.
//
// Intake operations never fail with a Go error; their InboxResponse state
// decides the status code (see intakeStatus). Everything else goes through
// respondError:
//  1. Handler encounters an error
//  2. statusFor picks the status code (400 for admin bad requests)
//  3. core.MapError turns the error into a user-friendly message
//  4. The technical error is logged with the request ID for correlation
//  5. The message is rendered as JSON for the API, as HTML for pages

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/stationinbox/internal/core"
	"github.com/JonMunkholm/stationinbox/internal/logging"
	"github.com/JonMunkholm/stationinbox/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes a user-friendly response.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, statusCode)
		return
	}
	respondErrorHTML(w, r, userMsg, statusCode)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case core.IsBadRequest(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrStorageBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// intakeStatus maps the state of an intake response to its status code.
func intakeStatus(state core.ResponseState) int {
	switch state {
	case core.StateReview:
		return http.StatusAccepted
	case core.StateConflict:
		return http.StatusConflict
	case core.StateUnauthorized:
		return http.StatusUnauthorized
	case core.StateNotEnoughData, core.StateLatLonOutOfRange, core.StateUnsupportedContentType:
		return http.StatusBadRequest
	case core.StatePhotoTooLarge:
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// respondErrorJSON writes a JSON error response.
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

// respondErrorHTML renders the error page.
func respondErrorHTML(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := templates.ErrorPage(statusCode, msg).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error page", "error", err)
	}
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
