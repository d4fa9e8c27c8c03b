package web

import (
	"net/http"

	"github.com/JonMunkholm/stationinbox/internal/core"
	"github.com/JonMunkholm/stationinbox/internal/web/templates"
)

// CommandResult is the response to an admin inbox command.
type CommandResult struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleAdminInbox(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	entries, err := s.service.ListAdminInbox(r.Context(), user)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleAdminCommand applies one command. Refused commands answer 400 with
// the reason for the administrator.
func (s *Server) handleAdminCommand(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var cmd core.InboxCommand
	if err := decodeJSON(w, r, &cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, CommandResult{Status: http.StatusBadRequest, Message: "invalid request body"})
		return
	}
	cmd.Command = core.ParseCommand(string(cmd.Command))

	if err := s.service.ProcessAdminCommand(r.Context(), user, cmd); err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			writeJSON(w, status, CommandResult{Status: status, Message: err.Error()})
			return
		}
		respondError(w, r, err, status)
		return
	}
	writeJSON(w, http.StatusOK, CommandResult{Status: http.StatusOK, Message: "ok"})
}

func (s *Server) handleAdminInboxCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.CountPendingInboxEntries(r.Context())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pendingInboxEntries": n})
}

func (s *Server) handleNextZ(w http.ResponseWriter, r *http.Request) {
	next, err := s.service.NextZ(r.Context())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"nextZ": next})
}

// handleAdminInboxPage renders the pending entries as HTML.
func (s *Server) handleAdminInboxPage(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	entries, err := s.service.ListAdminInbox(r.Context(), user)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.AdminInbox(entries, user.Name).Render(r.Context(), w); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
	}
}
