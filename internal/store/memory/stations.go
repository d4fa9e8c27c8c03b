package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// StationStore implements core.StationStore.
type StationStore struct {
	db *DB
}

var _ core.StationStore = (*StationStore)(nil)

func (s *StationStore) FindByKey(_ context.Context, key core.StationKey) (*core.Station, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	st, _ := s.db.stationLocked(key)
	return st, nil
}

func (s *StationStore) FindByID(_ context.Context, id string) (*core.Station, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var found *core.Station
	for key := range s.db.stations {
		if key.ID != id {
			continue
		}
		if found != nil {
			return nil, nil
		}
		found, _ = s.db.stationLocked(key)
	}
	return found, nil
}

func (s *StationStore) CountNearby(_ context.Context, c core.Coordinates, radiusKm float64) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	n := 0
	for _, st := range s.db.stations {
		if c.Within(st.Coordinates, radiusKm) {
			n++
		}
	}
	return n, nil
}

func (s *StationStore) Insert(_ context.Context, station core.Station) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, exists := s.db.stations[station.Key]; exists {
		return fmt.Errorf("station %s already exists", station.Key)
	}
	station.Photos = nil
	s.db.stations[station.Key] = station
	return nil
}

func (s *StationStore) update(key core.StationKey, fn func(*core.Station)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	st, ok := s.db.stations[key]
	if !ok {
		return fmt.Errorf("station %s not found", key)
	}
	fn(&st)
	s.db.stations[key] = st
	return nil
}

func (s *StationStore) UpdateActive(_ context.Context, key core.StationKey, active bool) error {
	return s.update(key, func(st *core.Station) { st.Active = active })
}

func (s *StationStore) UpdateLocation(_ context.Context, key core.StationKey, c core.Coordinates) error {
	return s.update(key, func(st *core.Station) { st.Coordinates = c })
}

func (s *StationStore) ChangeTitle(_ context.Context, key core.StationKey, title string) error {
	return s.update(key, func(st *core.Station) { st.Title = title })
}

func (s *StationStore) Delete(_ context.Context, key core.StationKey) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.stations, key)
	return nil
}

func (s *StationStore) MaxZ(_ context.Context) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	highest := 0
	for key := range s.db.stations {
		if !strings.HasPrefix(key.ID, "Z") {
			continue
		}
		if n, err := strconv.Atoi(key.ID[1:]); err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}
