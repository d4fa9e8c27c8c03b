package core

// service_intake.go validates and records new submissions.
//
// Every user-facing outcome is returned as an InboxResponse state; intake
// never surfaces Go errors to its caller. Conflict flags computed here are
// advisory: they mark likely duplicates for the operator and the uploader,
// while the admin import re-checks them before committing.

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/stationinbox/internal/logging"
	"github.com/JonMunkholm/stationinbox/internal/metrics"
)

const duplicateMarker = " (possible duplicate!)"

// ReportProblem records a problem report about an existing station.
func (s *Service) ReportProblem(ctx context.Context, report ProblemReport, user User, clientInfo string) InboxResponse {
	resp := s.reportProblem(ctx, report, user, clientInfo)
	metrics.IntakeTotal.WithLabelValues("problem_report", string(resp.State)).Inc()
	return resp
}

func (s *Service) reportProblem(ctx context.Context, report ProblemReport, user User, clientInfo string) InboxResponse {
	log := logging.WithFields(ctx, "user", user.Name, "country", report.CountryCode, "station_id", report.StationID)

	if !user.EmailVerified {
		log.Info("problem report refused, email not verified", "email", user.Email)
		return InboxResponse{State: StateUnauthorized, Message: "Email not verified"}
	}

	log.Info("new problem report", "type", report.Type)
	station, err := s.resolver.Find(ctx, report.CountryCode, report.StationID)
	if err != nil {
		log.Error("problem report: station lookup failed", "error", err)
		return InboxResponse{State: StateError}
	}
	if station == nil {
		return InboxResponse{State: StateNotEnoughData, Message: "Station not found"}
	}
	if strings.TrimSpace(report.Comment) == "" {
		return InboxResponse{State: StateNotEnoughData, Message: "Comment is mandatory"}
	}
	reportType, ok := ParseProblemReportType(string(report.Type))
	if !ok {
		return InboxResponse{State: StateNotEnoughData, Message: "Problem type is mandatory"}
	}
	if reportType.NeedsPhoto() && !station.HasPhoto() {
		return InboxResponse{State: StateNotEnoughData, Message: "Problem type is only applicable to station with photo"}
	}
	if reportType == WrongLocation {
		if c, ok := present(report.Coordinates); !ok || !c.IsValid() {
			return InboxResponse{State: StateLatLonOutOfRange, Message: "Problem type is only applicable with valid coordinates"}
		}
	}

	entry := NewProblemReportEntry(station.Key, reportType, report.Comment, report.Coordinates, report.Title, user.ID)
	id, err := s.inbox.Insert(ctx, entry)
	if err != nil {
		log.Error("problem report: insert failed", "error", err)
		return InboxResponse{State: StateError}
	}

	s.monitor.SendMessage(ctx, MonitorMessage{Text: fmt.Sprintf("New problem report for %s - %s:%s\n%s: %s\nby %s\nvia %s",
		station.Title, station.Key.Country, station.Key.ID, reportType,
		strings.TrimSpace(report.Comment), user.Name, clientInfo)})

	return InboxResponse{State: StateReview, ID: id}
}

// UploadPhoto records a photo for an existing station or, when the station
// cannot be resolved, for a proposed new station at the given coordinates.
func (s *Service) UploadPhoto(ctx context.Context, upload PhotoUpload, user User) InboxResponse {
	resp := s.uploadPhoto(ctx, upload, user)
	metrics.IntakeTotal.WithLabelValues("photo", string(resp.State)).Inc()
	return resp
}

func (s *Service) uploadPhoto(ctx context.Context, upload PhotoUpload, user User) InboxResponse {
	log := logging.WithFields(ctx, "user", user.Name, "country", upload.CountryCode, "station_id", upload.StationID)

	if !user.EmailVerified {
		log.Info("photo upload refused, email not verified", "email", user.Email)
		return InboxResponse{State: StateUnauthorized, Message: "Email not verified"}
	}

	station, err := s.resolver.Find(ctx, upload.CountryCode, upload.StationID)
	if err != nil {
		log.Error("photo upload: station lookup failed", "error", err)
		return InboxResponse{State: StateError}
	}

	var coords *Coordinates
	if station == nil {
		log.Warn("photo upload: station not found")
		if strings.TrimSpace(upload.Title) == "" || upload.Lat == nil || upload.Lon == nil {
			log.Warn("photo upload: not enough data for missing station",
				"title", upload.Title, "lat", upload.Lat, "lon", upload.Lon)
			return InboxResponse{State: StateNotEnoughData,
				Message: "Not enough data: either 'country' and 'stationId' or 'title', 'latitude' and 'longitude' have to be provided"}
		}
		c := Coordinates{Lat: *upload.Lat, Lon: *upload.Lon}
		if !c.IsValid() {
			log.Warn("photo upload: lat/lon out of range", "lat", c.Lat, "lon", c.Lon)
			return InboxResponse{State: StateLatLonOutOfRange, Message: "'latitude' and/or 'longitude' out of range"}
		}
		coords = &c
	}

	extension, ok := ExtensionForContentType(upload.ContentType)
	if !ok {
		log.Warn("photo upload: unsupported content type", "content_type", upload.ContentType)
		return InboxResponse{State: StateUnsupportedContentType, Message: "unsupported content type (only jpg and png are supported)"}
	}

	conflict := s.conflicts.StationConflict(ctx, 0, station) || s.conflicts.CoordinatesConflict(ctx, 0, coords)

	var entry InboxEntry
	if station != nil {
		entry = NewStationPhotoEntry(station.Key, upload.Title, extension, upload.Comment, upload.Active, user.ID)
	} else {
		entry = NewMissingStationEntry(upload.CountryCode, upload.Title, *coords, extension, upload.Comment, upload.Active, user.ID)
	}
	id, err := s.inbox.Insert(ctx, entry)
	if err != nil {
		log.Error("photo upload: insert failed", "error", err)
		return InboxResponse{State: StateError}
	}
	entry.ID = id
	filename := entry.Filename()
	log = log.With("entry_id", id, "filename", filename)

	crc, err := s.storage.StoreUpload(ctx, upload.Body, filename)
	if err != nil {
		s.discardUpload(ctx, id, err)
		var tooLarge *PhotoTooLargeError
		if errors.As(err, &tooLarge) {
			log.Warn("photo upload: too large", "max_size", tooLarge.MaxSize)
			return InboxResponse{State: StatePhotoTooLarge,
				Message: fmt.Sprintf("Photo too large, max %d bytes allowed", tooLarge.MaxSize)}
		}
		log.Error("photo upload: storing file failed", "error", err)
		return InboxResponse{State: StateError}
	}
	if err := s.inbox.UpdateCrc32(ctx, id, crc); err != nil {
		log.Error("photo upload: saving checksum failed", "error", err)
		s.discardUpload(ctx, id, err)
		if rerr := s.storage.Reject(ctx, entry); rerr != nil {
			log.Warn("photo upload: moving stored file aside failed", "error", rerr)
		}
		return InboxResponse{State: StateError}
	}

	inboxURL := s.inboxBaseURL + "/" + url.PathEscape(filename)
	duplicateInfo := ""
	if conflict {
		duplicateInfo = duplicateMarker
	}
	var text string
	if station != nil {
		text = fmt.Sprintf("New photo upload for %s - %s:%s\n%s\n%s%s\nby %s\nvia %s",
			station.Title, station.Key.Country, station.Key.ID,
			strings.TrimSpace(upload.Comment), inboxURL, duplicateInfo, user.Name, upload.ClientInfo)
	} else {
		text = fmt.Sprintf("Photo upload for missing station %s at https://map.railway-stations.org/index.php?mlat=%s&mlon=%s&zoom=18&layers=M\n%s\n%s%s\nby %s\nvia %s",
			upload.Title, formatDegrees(coords.Lat), formatDegrees(coords.Lon),
			strings.TrimSpace(upload.Comment), inboxURL, duplicateInfo, user.Name, upload.ClientInfo)
	}
	s.monitor.SendMessage(ctx, MonitorMessage{Text: text, Attachment: s.storage.UploadFile(filename)})

	state := StateReview
	if conflict {
		state = StateConflict
	}
	log.Info("photo upload stored", "state", state, "crc32", crc)
	return InboxResponse{State: state, ID: id, Filename: filename, InboxURL: inboxURL, Crc32: &crc}
}

// discardUpload finalizes an entry whose file could not be stored so it
// does not linger in the admin inbox without a photo.
func (s *Service) discardUpload(ctx context.Context, id int64, cause error) {
	if err := s.inbox.Reject(ctx, id, "Upload failed: "+cause.Error()); err != nil {
		logging.WithFields(ctx, "entry_id", id).Warn("could not discard failed upload", "error", err)
	}
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
