package memory

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// PhotoStore implements core.PhotoStore.
type PhotoStore struct {
	db *DB
}

var _ core.PhotoStore = (*PhotoStore)(nil)

func (s *PhotoStore) Insert(_ context.Context, photo core.Photo) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.nextPhotoID++
	photo.ID = s.db.nextPhotoID
	s.db.photos[photo.ID] = photo
	return photo.ID, nil
}

func (s *PhotoStore) Update(_ context.Context, photo core.Photo) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.photos[photo.ID]; !ok {
		return fmt.Errorf("photo %d not found", photo.ID)
	}
	s.db.photos[photo.ID] = photo
	return nil
}

func (s *PhotoStore) UpdateOutdated(_ context.Context, key core.StationKey) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for id, p := range s.db.photos {
		if p.StationKey == key && p.Primary {
			p.Outdated = true
			s.db.photos[id] = p
		}
	}
	return nil
}

func (s *PhotoStore) Delete(_ context.Context, key core.StationKey) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for id, p := range s.db.photos {
		if p.StationKey == key {
			delete(s.db.photos, id)
		}
	}
	return nil
}

// UserStore implements core.UserStore.
type UserStore struct {
	db *DB
}

var _ core.UserStore = (*UserStore)(nil)

func (s *UserStore) FindByID(_ context.Context, id int64) (*core.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// CountryStore implements core.CountryStore.
type CountryStore struct {
	db *DB
}

var _ core.CountryStore = (*CountryStore)(nil)

func (s *CountryStore) FindByCode(_ context.Context, code string) (*core.Country, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c, ok := s.db.countries[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
