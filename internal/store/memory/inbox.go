package memory

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// InboxStore implements core.InboxStore.
type InboxStore struct {
	db *DB
}

var _ core.InboxStore = (*InboxStore)(nil)

func (s *InboxStore) Insert(_ context.Context, entry core.InboxEntry) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.nextEntryID++
	entry.ID = s.db.nextEntryID
	entry.Done = false
	entry.Notified = false
	s.db.entries[entry.ID] = entry
	return entry.ID, nil
}

func (s *InboxStore) FindByID(_ context.Context, id int64) (*core.InboxEntry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	e, ok := s.db.entries[id]
	if !ok {
		return nil, nil
	}
	e = s.db.enrichLocked(e)
	return &e, nil
}

func (s *InboxStore) FindPending(_ context.Context) ([]core.InboxEntry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []core.InboxEntry
	for _, e := range s.db.entries {
		if !e.Done {
			out = append(out, s.db.enrichLocked(e))
		}
	}
	return sortedEntries(out), nil
}

// FindPublic lists pending photo uploads with the position of their station,
// or their own position for station-less uploads.
func (s *InboxStore) FindPublic(_ context.Context) ([]core.PublicInboxEntry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var pending []core.InboxEntry
	for _, e := range s.db.entries {
		if !e.Done && e.IsPhotoUpload() {
			pending = append(pending, e)
		}
	}
	out := make([]core.PublicInboxEntry, 0, len(pending))
	for _, e := range sortedEntries(pending) {
		pe := core.PublicInboxEntry{CountryCode: e.CountryCode, StationID: e.StationID, Title: e.Title}
		if st, ok := s.db.stations[e.StationKey()]; ok && e.StationID != "" {
			pe.Title = st.Title
			pe.Coordinates = st.Coordinates
		} else if e.Coordinates != nil {
			pe.Coordinates = *e.Coordinates
		}
		out = append(out, pe)
	}
	return out, nil
}

func (s *InboxStore) FindNewestPendingByStationAndPhotographer(_ context.Context, key core.StationKey, photographerID int64) (*core.InboxEntry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var newest *core.InboxEntry
	for _, e := range s.db.entries {
		if e.Done || e.PhotographerID != photographerID || e.StationKey() != key {
			continue
		}
		if newest == nil || e.ID > newest.ID {
			e := e
			newest = &e
		}
	}
	if newest == nil {
		return nil, nil
	}
	e := s.db.enrichLocked(*newest)
	return &e, nil
}

func (s *InboxStore) CountPendingForStation(_ context.Context, excludeID int64, key core.StationKey) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	n := 0
	for _, e := range s.db.entries {
		if !e.Done && e.ID != excludeID && e.StationID != "" && e.StationKey() == key {
			n++
		}
	}
	return n, nil
}

func (s *InboxStore) CountPendingNearby(_ context.Context, excludeID int64, c core.Coordinates, radiusKm float64) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	n := 0
	for _, e := range s.db.entries {
		if e.Done || e.ID == excludeID || e.Coordinates == nil || e.Coordinates.IsZero() {
			continue
		}
		if c.Within(*e.Coordinates, radiusKm) {
			n++
		}
	}
	return n, nil
}

func (s *InboxStore) CountPending(_ context.Context) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	n := 0
	for _, e := range s.db.entries {
		if !e.Done {
			n++
		}
	}
	return n, nil
}

func (s *InboxStore) UpdateCrc32(_ context.Context, id int64, crc32 uint32) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.entries[id]
	if !ok {
		return fmt.Errorf("inbox entry %d not found", id)
	}
	e.Crc32 = &crc32
	s.db.entries[id] = e
	return nil
}

func (s *InboxStore) Reject(_ context.Context, id int64, reason string) error {
	return s.finalize(id, &reason)
}

func (s *InboxStore) Done(_ context.Context, id int64) error {
	return s.finalize(id, nil)
}

func (s *InboxStore) finalize(id int64, reason *string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.entries[id]
	if !ok || e.Done {
		return core.ErrNoPendingEntry
	}
	e.Done = true
	e.RejectReason = reason
	s.db.entries[id] = e
	return nil
}

func (s *InboxStore) FindToNotify(_ context.Context) ([]core.InboxEntry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []core.InboxEntry
	for _, e := range s.db.entries {
		if e.Done && !e.Notified {
			out = append(out, s.db.enrichLocked(e))
		}
	}
	return sortedEntries(out), nil
}

func (s *InboxStore) UpdateNotified(_ context.Context, ids []int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, id := range ids {
		if e, ok := s.db.entries[id]; ok {
			e.Notified = true
			s.db.entries[id] = e
		}
	}
	return nil
}
