// Package memory provides in-process implementations of the core stores.
//
// All stores of one DB share a single lock and see each other's data, so
// joins such as "station with photos" or "entry with photographer name"
// behave like the relational backend. The package backs the test suites and
// local development without a database.
package memory

import (
	"sort"
	"sync"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// DB is the shared in-memory data set.
type DB struct {
	mu sync.RWMutex

	nextEntryID int64
	nextPhotoID int64

	entries   map[int64]core.InboxEntry
	stations  map[core.StationKey]core.Station
	photos    map[int64]core.Photo
	users     map[int64]core.User
	countries map[string]core.Country
}

// New creates an empty data set.
func New() *DB {
	return &DB{
		entries:   make(map[int64]core.InboxEntry),
		stations:  make(map[core.StationKey]core.Station),
		photos:    make(map[int64]core.Photo),
		users:     make(map[int64]core.User),
		countries: make(map[string]core.Country),
	}
}

// Inbox returns the inbox store view.
func (db *DB) Inbox() *InboxStore { return &InboxStore{db: db} }

// Stations returns the station store view.
func (db *DB) Stations() *StationStore { return &StationStore{db: db} }

// Photos returns the photo store view.
func (db *DB) Photos() *PhotoStore { return &PhotoStore{db: db} }

// Users returns the user store view.
func (db *DB) Users() *UserStore { return &UserStore{db: db} }

// Countries returns the country store view.
func (db *DB) Countries() *CountryStore { return &CountryStore{db: db} }

// PutUser adds or replaces a user.
func (db *DB) PutUser(u core.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[u.ID] = u
}

// PutCountry adds or replaces a country.
func (db *DB) PutCountry(c core.Country) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.countries[c.Code] = c
}

// PutStation adds or replaces a station. Photos on s are stored as well.
func (db *DB) PutStation(s core.Station) {
	db.mu.Lock()
	defer db.mu.Unlock()
	photos := s.Photos
	s.Photos = nil
	db.stations[s.Key] = s
	for _, p := range photos {
		p.StationKey = s.Key
		if p.ID == 0 {
			db.nextPhotoID++
			p.ID = db.nextPhotoID
		} else if p.ID > db.nextPhotoID {
			db.nextPhotoID = p.ID
		}
		db.photos[p.ID] = p
	}
}

// Entry returns a copy of the stored entry, for assertions.
func (db *DB) Entry(id int64) (core.InboxEntry, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.entries[id]
	return e, ok
}

// stationLocked assembles a station snapshot with its photos, primary first.
// Callers hold db.mu.
func (db *DB) stationLocked(key core.StationKey) (*core.Station, bool) {
	s, ok := db.stations[key]
	if !ok {
		return nil, false
	}
	for _, p := range db.photos {
		if p.StationKey == key {
			if u, ok := db.users[p.PhotographerID]; ok {
				p.PhotographerName = u.Name
			}
			s.Photos = append(s.Photos, p)
		}
	}
	sort.Slice(s.Photos, func(i, j int) bool {
		if s.Photos[i].Primary != s.Photos[j].Primary {
			return s.Photos[i].Primary
		}
		return s.Photos[i].ID < s.Photos[j].ID
	})
	return &s, true
}

// enrichLocked fills the joined photographer and title fields of an entry.
func (db *DB) enrichLocked(e core.InboxEntry) core.InboxEntry {
	if u, ok := db.users[e.PhotographerID]; ok {
		e.PhotographerName = u.Name
		e.PhotographerEmail = u.Email
	}
	if e.Title == "" && e.StationID != "" {
		if s, ok := db.stations[e.StationKey()]; ok {
			e.Title = s.Title
		}
	}
	return e
}

func sortedEntries(entries []core.InboxEntry) []core.InboxEntry {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}
