package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/stationinbox/internal/logging"
)

// UserInbox answers state queries for the requester's own entries. Queries
// that match nothing, or match an entry of another photographer, come back
// with state UNKNOWN.
func (s *Service) UserInbox(ctx context.Context, user User, queries []InboxStateQuery) []InboxStateQuery {
	results := make([]InboxStateQuery, 0, len(queries))
	for _, q := range queries {
		results = append(results, s.resolveStateQuery(ctx, user, q))
	}
	return results
}

func (s *Service) resolveStateQuery(ctx context.Context, user User, q InboxStateQuery) InboxStateQuery {
	q.State = StateUnknown
	log := logging.WithFields(ctx, "user", user.Name, "query_id", q.ID)

	var (
		entry *InboxEntry
		err   error
	)
	switch {
	case q.ID > 0:
		entry, err = s.inbox.FindByID(ctx, q.ID)
	case strings.TrimSpace(q.CountryCode) != "" && strings.TrimSpace(q.StationID) != "":
		key := StationKey{Country: strings.TrimSpace(q.CountryCode), ID: strings.TrimSpace(q.StationID)}
		entry, err = s.inbox.FindNewestPendingByStationAndPhotographer(ctx, key, user.ID)
	}
	if err != nil {
		log.Error("user inbox: lookup failed", "error", err)
		return q
	}
	if entry == nil || entry.PhotographerID != user.ID {
		return q
	}

	q.ID = entry.ID
	q.CountryCode = entry.CountryCode
	q.StationID = entry.StationID
	q.Coordinates = entry.Coordinates
	q.Filename = entry.Filename()
	q.Crc32 = entry.Crc32
	if entry.RejectReason != nil {
		q.RejectedReason = *entry.RejectReason
	}

	processed := false
	if !entry.Done && entry.IsPhotoUpload() {
		processed = s.storage.IsProcessed(ctx, entry.Filename())
	}
	q.InboxURL = s.inboxURL(*entry, processed)

	switch {
	case entry.IsRejected():
		q.State = StateRejected
	case entry.Done:
		q.State = StateAccepted
	case s.pendingConflict(ctx, *entry):
		q.State = StateConflict
	default:
		q.State = StateReview
	}
	return q
}

// pendingConflict evaluates the conflict flag of a pending entry.
func (s *Service) pendingConflict(ctx context.Context, entry InboxEntry) bool {
	if entry.StationID == "" {
		return s.conflicts.CoordinatesConflict(ctx, entry.ID, entry.Coordinates)
	}

	key := entry.StationKey()
	station, err := s.stations.FindByKey(ctx, key)
	if err != nil {
		logging.FromContext(ctx).Warn("conflict check: station lookup failed", "station", key.String(), "error", err)
		return false
	}
	return s.conflicts.StationConflict(ctx, entry.ID, station)
}

// ListAdminInbox returns all pending entries, oldest first, annotated with
// processing and conflict information.
func (s *Service) ListAdminInbox(ctx context.Context, user User) ([]AdminInboxEntry, error) {
	pending, err := s.inbox.FindPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending inbox entries: %w", err)
	}

	entries := make([]AdminInboxEntry, 0, len(pending))
	for _, e := range pending {
		ae := AdminInboxEntry{InboxEntry: e}
		if e.IsPhotoUpload() {
			ae.Processed = s.storage.IsProcessed(ctx, e.Filename())
			ae.InboxURL = s.inboxURL(e, ae.Processed)
		}
		if e.StationID == "" {
			ae.Conflict = s.conflicts.CoordinatesConflict(ctx, e.ID, e.Coordinates)
		}
		entries = append(entries, ae)
	}

	logging.WithFields(ctx, "admin", user.Name).Debug("admin inbox listed", "entries", len(entries))
	return entries, nil
}

// PublicInbox returns the anonymous view of pending photo uploads.
func (s *Service) PublicInbox(ctx context.Context) ([]PublicInboxEntry, error) {
	entries, err := s.inbox.FindPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("list public inbox: %w", err)
	}
	return entries, nil
}

// CountPendingInboxEntries returns the number of entries awaiting review.
func (s *Service) CountPendingInboxEntries(ctx context.Context) (int, error) {
	n, err := s.inbox.CountPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("count pending inbox entries: %w", err)
	}
	return n, nil
}

// NextZ proposes the next free "Z" station id for a new station.
func (s *Service) NextZ(ctx context.Context) (string, error) {
	highest, err := s.stations.MaxZ(ctx)
	if err != nil {
		return "", fmt.Errorf("find highest Z station id: %w", err)
	}
	return "Z" + strconv.Itoa(highest+1), nil
}
