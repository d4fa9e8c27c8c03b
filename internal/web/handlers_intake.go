package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/stationinbox/internal/core"
	"github.com/JonMunkholm/stationinbox/internal/logging"
	"github.com/JonMunkholm/stationinbox/internal/web/middleware"
)

// multipartMemory is the part of a multipart upload kept in memory; the
// rest spills to temporary files.
const multipartMemory = 1 << 20

// multipartOverhead is the allowance for form fields and part headers on
// top of the photo itself.
const multipartOverhead = 64 << 10

// handlePhotoUpload accepts the raw image as body. Station and metadata
// come from headers; Station-Title and Comment may be URL encoded.
func (s *Server) handlePhotoUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	upload := core.PhotoUpload{
		ClientInfo:  r.UserAgent(),
		Body:        r.Body,
		StationID:   strings.TrimSpace(r.Header.Get("Station-Id")),
		CountryCode: strings.TrimSpace(r.Header.Get("Country")),
		ContentType: r.Header.Get("Content-Type"),
		Title:       decodeHeader(r.Header.Get("Station-Title")),
		Comment:     decodeHeader(r.Header.Get("Comment")),
	}
	if resp, ok := parseUploadFields(&upload, r.Header.Get("Latitude"), r.Header.Get("Longitude"), r.Header.Get("Active")); !ok {
		writeJSON(w, intakeStatus(resp.State), resp)
		return
	}

	resp := s.service.UploadPhoto(r.Context(), upload, user)
	writeJSON(w, intakeStatus(resp.State), resp)
}

// handlePhotoUploadMultipart is the form-based variant of handlePhotoUpload
// for clients that cannot send raw bodies.
func (s *Server) handlePhotoUploadMultipart(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	maxSize := s.cfg.Storage.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logging.FromContext(r.Context()).Warn("multipart upload: body too large", "limit", tooLarge.Limit)
			writeJSON(w, http.StatusRequestEntityTooLarge, core.InboxResponse{State: core.StatePhotoTooLarge,
				Message: fmt.Sprintf("Photo too large, max %d bytes allowed", maxSize)})
			return
		}
		writeJSON(w, http.StatusBadRequest, core.InboxResponse{State: core.StateNotEnoughData, Message: "invalid multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, core.InboxResponse{State: core.StateNotEnoughData, Message: "file is mandatory"})
		return
	}
	defer file.Close()

	upload := core.PhotoUpload{
		ClientInfo:  r.UserAgent(),
		Body:        file,
		StationID:   strings.TrimSpace(r.FormValue("stationId")),
		CountryCode: strings.TrimSpace(r.FormValue("countryCode")),
		ContentType: partContentType(header),
		Title:       strings.TrimSpace(r.FormValue("stationTitle")),
		Comment:     r.FormValue("comment"),
	}
	if resp, ok := parseUploadFields(&upload, r.FormValue("latitude"), r.FormValue("longitude"), r.FormValue("active")); !ok {
		writeJSON(w, intakeStatus(resp.State), resp)
		return
	}

	resp := s.service.UploadPhoto(r.Context(), upload, user)
	writeJSON(w, intakeStatus(resp.State), resp)
}

func (s *Server) handleReportProblem(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var report core.ProblemReport
	if err := decodeJSON(w, r, &report); err != nil {
		logging.FromContext(r.Context()).Warn("problem report: bad body", "error", err)
		writeJSON(w, http.StatusBadRequest, core.InboxResponse{State: core.StateNotEnoughData, Message: "invalid request body"})
		return
	}

	resp := s.service.ReportProblem(r.Context(), report, user, core.ClientInfoFromContext(r.Context()))
	writeJSON(w, intakeStatus(resp.State), resp)
}

func (s *Server) handleUserInbox(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var queries []core.InboxStateQuery
	if err := decodeJSON(w, r, &queries); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, s.service.UserInbox(r.Context(), user, queries))
}

// currentUser returns the user put into the context by JWTAuth.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (core.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
	}
	return user, ok
}

// parseUploadFields fills the optional numeric and boolean fields. On a
// malformed value it returns the response to send instead.
func parseUploadFields(upload *core.PhotoUpload, lat, lon, active string) (core.InboxResponse, bool) {
	var err error
	if upload.Lat, err = parseOptionalFloat(lat); err != nil {
		return core.InboxResponse{State: core.StateLatLonOutOfRange, Message: "'latitude' is not a number"}, false
	}
	if upload.Lon, err = parseOptionalFloat(lon); err != nil {
		return core.InboxResponse{State: core.StateLatLonOutOfRange, Message: "'longitude' is not a number"}, false
	}
	if v := strings.TrimSpace(active); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return core.InboxResponse{State: core.StateNotEnoughData, Message: "'active' must be true or false"}, false
		}
		upload.Active = &b
	}
	return core.InboxResponse{}, true
}

func parseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// decodeHeader undoes the URL encoding clients apply to non-ASCII header
// values. Values that do not decode are used as sent.
func decodeHeader(v string) string {
	if decoded, err := url.QueryUnescape(v); err == nil {
		v = decoded
	}
	return strings.TrimSpace(v)
}

// partContentType prefers the part's declared type and falls back to
// sniffing the first bytes.
func partContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	f, err := header.Open()
	if err != nil {
		return ""
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	return http.DetectContentType(head[:n])
}
