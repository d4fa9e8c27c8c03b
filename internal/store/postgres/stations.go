package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// StationStore implements core.StationStore.
type StationStore struct {
	db DBTX
}

var _ core.StationStore = (*StationStore)(nil)

const stationColumns = `SELECT country_code, id, title, lat, lon, short_code, active FROM stations`

func scanStation(row rowScanner) (core.Station, error) {
	var (
		st        core.Station
		shortCode pgtype.Text
	)
	err := row.Scan(&st.Key.Country, &st.Key.ID, &st.Title, &st.Coordinates.Lat, &st.Coordinates.Lon, &shortCode, &st.Active)
	st.ShortCode = shortCode.String
	return st, err
}

func (s *StationStore) FindByKey(ctx context.Context, key core.StationKey) (*core.Station, error) {
	st, err := scanStation(s.db.QueryRow(ctx, stationColumns+` WHERE country_code = $1 AND id = $2`, key.Country, key.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find station %s: %w", key, err)
	}
	if st.Photos, err = s.photos(ctx, key); err != nil {
		return nil, err
	}
	return &st, nil
}

// FindByID resolves a station id without a country. Two matches are as
// good as none.
func (s *StationStore) FindByID(ctx context.Context, id string) (*core.Station, error) {
	rows, err := s.db.Query(ctx, stationColumns+` WHERE id = $1 LIMIT 2`, id)
	if err != nil {
		return nil, fmt.Errorf("find station by id %q: %w", id, err)
	}
	defer rows.Close()

	var found []core.Station
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan station %q: %w", id, err)
		}
		found = append(found, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find station by id %q: %w", id, err)
	}
	if len(found) != 1 {
		return nil, nil
	}

	st := found[0]
	if st.Photos, err = s.photos(ctx, st.Key); err != nil {
		return nil, err
	}
	return &st, nil
}

// photos loads the photos of a station, primary first.
func (s *StationStore) photos(ctx context.Context, key core.StationKey) ([]core.Photo, error) {
	rows, err := s.db.Query(ctx, `SELECT p.id, p.url_path, p.license, p.photographer_id, u.name,
			p.created_at, p.is_primary, p.outdated
		FROM photos p
		JOIN users u ON u.id = p.photographer_id
		WHERE p.country_code = $1 AND p.station_id = $2
		ORDER BY p.is_primary DESC, p.id`, key.Country, key.ID)
	if err != nil {
		return nil, fmt.Errorf("load photos of %s: %w", key, err)
	}
	defer rows.Close()

	var photos []core.Photo
	for rows.Next() {
		p := core.Photo{StationKey: key}
		if err := rows.Scan(&p.ID, &p.URLPath, &p.License, &p.PhotographerID, &p.PhotographerName,
			&p.CreatedAt, &p.Primary, &p.Outdated); err != nil {
			return nil, fmt.Errorf("scan photo of %s: %w", key, err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load photos of %s: %w", key, err)
	}
	return photos, nil
}

func (s *StationStore) CountNearby(ctx context.Context, c core.Coordinates, radiusKm float64) (int, error) {
	box := nearbyBox(c, radiusKm)
	rows, err := s.db.Query(ctx, `SELECT lat, lon FROM stations
		WHERE lat BETWEEN $1 AND $2 AND lon BETWEEN $3 AND $4`,
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return 0, fmt.Errorf("count stations near %s: %w", c, err)
	}
	n, err := countWithin(rows, c, radiusKm)
	if err != nil {
		return 0, fmt.Errorf("count stations near %s: %w", c, err)
	}
	return n, nil
}

func (s *StationStore) Insert(ctx context.Context, station core.Station) error {
	_, err := s.db.Exec(ctx, `INSERT INTO stations (country_code, id, title, lat, lon, short_code, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		station.Key.Country, station.Key.ID, station.Title,
		station.Coordinates.Lat, station.Coordinates.Lon,
		toPgText(station.ShortCode), station.Active)
	if isUniqueViolation(err) {
		return fmt.Errorf("station %s already exists: %w", station.Key, err)
	}
	if err != nil {
		return fmt.Errorf("insert station %s: %w", station.Key, err)
	}
	return nil
}

func (s *StationStore) update(ctx context.Context, key core.StationKey, set string, args ...any) error {
	args = append([]any{key.Country, key.ID}, args...)
	tag, err := s.db.Exec(ctx, `UPDATE stations SET `+set+` WHERE country_code = $1 AND id = $2`, args...)
	if err != nil {
		return fmt.Errorf("update station %s: %w", key, err)
	}
	return checkAffected(tag, "station "+key.String())
}

func (s *StationStore) UpdateActive(ctx context.Context, key core.StationKey, active bool) error {
	return s.update(ctx, key, "active = $3", active)
}

func (s *StationStore) UpdateLocation(ctx context.Context, key core.StationKey, c core.Coordinates) error {
	return s.update(ctx, key, "lat = $3, lon = $4", c.Lat, c.Lon)
}

func (s *StationStore) ChangeTitle(ctx context.Context, key core.StationKey, title string) error {
	return s.update(ctx, key, "title = $3", title)
}

func (s *StationStore) Delete(ctx context.Context, key core.StationKey) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM stations WHERE country_code = $1 AND id = $2`, key.Country, key.ID); err != nil {
		return fmt.Errorf("delete station %s: %w", key, err)
	}
	return nil
}

func (s *StationStore) MaxZ(ctx context.Context) (int, error) {
	var highest int
	err := s.db.QueryRow(ctx, `SELECT COALESCE(MAX(CAST(substring(id FROM 2) AS INTEGER)), 0)
		FROM stations WHERE id ~ '^Z[0-9]+$'`).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("find highest Z station id: %w", err)
	}
	return highest, nil
}
