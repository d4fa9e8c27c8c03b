package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// InboxStore implements core.InboxStore.
type InboxStore struct {
	db DBTX
}

var _ core.InboxStore = (*InboxStore)(nil)

const entryColumns = `SELECT i.id, i.country_code, i.station_id, COALESCE(NULLIF(i.title, ''), s.title),
		i.lat, i.lon, i.photographer_id, u.name, u.email, i.extension, i.comment,
		i.problem_report_type, i.active, i.created_at, i.done, i.reject_reason, i.crc32, i.notified
	FROM inbox i
	JOIN users u ON u.id = i.photographer_id
	LEFT JOIN stations s ON s.country_code = i.country_code AND s.id = i.station_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (core.InboxEntry, error) {
	var (
		e            core.InboxEntry
		countryCode  pgtype.Text
		stationID    pgtype.Text
		title        pgtype.Text
		lat, lon     pgtype.Float8
		name, email  pgtype.Text
		extension    pgtype.Text
		comment      pgtype.Text
		problemType  pgtype.Text
		active       pgtype.Bool
		rejectReason pgtype.Text
		crc          pgtype.Int8
	)
	err := row.Scan(
		&e.ID, &countryCode, &stationID, &title,
		&lat, &lon, &e.PhotographerID, &name, &email, &extension, &comment,
		&problemType, &active, &e.CreatedAt, &e.Done, &rejectReason, &crc, &e.Notified,
	)
	if err != nil {
		return core.InboxEntry{}, err
	}

	e.CountryCode = countryCode.String
	e.StationID = stationID.String
	e.Title = title.String
	if lat.Valid && lon.Valid {
		e.Coordinates = &core.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	e.PhotographerName = name.String
	e.PhotographerEmail = email.String
	e.Extension = extension.String
	e.Comment = comment.String
	e.ProblemReportType = core.ProblemReportType(problemType.String)
	e.Active = boolPtr(active)
	if rejectReason.Valid {
		r := rejectReason.String
		e.RejectReason = &r
	}
	if crc.Valid {
		v := uint32(crc.Int64)
		e.Crc32 = &v
	}
	return e, nil
}

func (s *InboxStore) queryEntries(ctx context.Context, where string, args ...any) ([]core.InboxEntry, error) {
	rows, err := s.db.Query(ctx, entryColumns+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]core.InboxEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *InboxStore) queryEntry(ctx context.Context, where string, args ...any) (*core.InboxEntry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx, entryColumns+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *InboxStore) Insert(ctx context.Context, entry core.InboxEntry) (int64, error) {
	var lat, lon pgtype.Float8
	if entry.Coordinates != nil {
		lat = pgtype.Float8{Float64: entry.Coordinates.Lat, Valid: true}
		lon = pgtype.Float8{Float64: entry.Coordinates.Lon, Valid: true}
	}

	var id int64
	err := s.db.QueryRow(ctx, `INSERT INTO inbox
		(photographer_id, country_code, station_id, title, lat, lon, extension, comment, problem_report_type, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		entry.PhotographerID,
		toPgText(entry.CountryCode),
		toPgText(entry.StationID),
		toPgText(entry.Title),
		lat, lon,
		toPgText(entry.Extension),
		toPgText(entry.Comment),
		toPgText(string(entry.ProblemReportType)),
		toPgBool(entry.Active),
		entry.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert inbox entry: %w", err)
	}
	return id, nil
}

func (s *InboxStore) FindByID(ctx context.Context, id int64) (*core.InboxEntry, error) {
	e, err := s.queryEntry(ctx, " WHERE i.id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("find inbox entry %d: %w", id, err)
	}
	return e, nil
}

func (s *InboxStore) FindPending(ctx context.Context) ([]core.InboxEntry, error) {
	entries, err := s.queryEntries(ctx, " WHERE NOT i.done ORDER BY i.id")
	if err != nil {
		return nil, fmt.Errorf("find pending inbox entries: %w", err)
	}
	return entries, nil
}

// FindPublic lists pending photo uploads with the position of their station,
// or their own position for station-less uploads.
func (s *InboxStore) FindPublic(ctx context.Context) ([]core.PublicInboxEntry, error) {
	rows, err := s.db.Query(ctx, `SELECT i.country_code, i.station_id,
			COALESCE(s.title, i.title), COALESCE(s.lat, i.lat), COALESCE(s.lon, i.lon)
		FROM inbox i
		LEFT JOIN stations s ON s.country_code = i.country_code AND s.id = i.station_id
		WHERE NOT i.done AND i.problem_report_type IS NULL AND i.extension IS NOT NULL
		ORDER BY i.id`)
	if err != nil {
		return nil, fmt.Errorf("find public inbox: %w", err)
	}
	defer rows.Close()

	out := make([]core.PublicInboxEntry, 0)
	for rows.Next() {
		var (
			countryCode, stationID, title pgtype.Text
			lat, lon                      pgtype.Float8
		)
		if err := rows.Scan(&countryCode, &stationID, &title, &lat, &lon); err != nil {
			return nil, fmt.Errorf("scan public inbox row: %w", err)
		}
		out = append(out, core.PublicInboxEntry{
			CountryCode: countryCode.String,
			StationID:   stationID.String,
			Title:       title.String,
			Coordinates: core.Coordinates{Lat: lat.Float64, Lon: lon.Float64},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find public inbox: %w", err)
	}
	return out, nil
}

func (s *InboxStore) FindNewestPendingByStationAndPhotographer(ctx context.Context, key core.StationKey, photographerID int64) (*core.InboxEntry, error) {
	e, err := s.queryEntry(ctx, ` WHERE NOT i.done AND i.country_code = $1 AND i.station_id = $2 AND i.photographer_id = $3
		ORDER BY i.id DESC LIMIT 1`, key.Country, key.ID, photographerID)
	if err != nil {
		return nil, fmt.Errorf("find newest pending entry for %s: %w", key, err)
	}
	return e, nil
}

func (s *InboxStore) CountPendingForStation(ctx context.Context, excludeID int64, key core.StationKey) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM inbox
		WHERE NOT done AND id <> $1 AND country_code = $2 AND station_id = $3`,
		excludeID, key.Country, key.ID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending entries for %s: %w", key, err)
	}
	return n, nil
}

// CountPendingNearby narrows the candidates with a bounding box in SQL and
// applies the exact distance check on the result.
func (s *InboxStore) CountPendingNearby(ctx context.Context, excludeID int64, c core.Coordinates, radiusKm float64) (int, error) {
	box := nearbyBox(c, radiusKm)
	rows, err := s.db.Query(ctx, `SELECT lat, lon FROM inbox
		WHERE NOT done AND id <> $1
		AND lat BETWEEN $2 AND $3 AND lon BETWEEN $4 AND $5
		AND NOT (lat = 0 AND lon = 0)`,
		excludeID, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return 0, fmt.Errorf("count pending entries near %s: %w", c, err)
	}
	n, err := countWithin(rows, c, radiusKm)
	if err != nil {
		return 0, fmt.Errorf("count pending entries near %s: %w", c, err)
	}
	return n, nil
}

func (s *InboxStore) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM inbox WHERE NOT done`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending entries: %w", err)
	}
	return n, nil
}

func (s *InboxStore) UpdateCrc32(ctx context.Context, id int64, crc32 uint32) error {
	tag, err := s.db.Exec(ctx, `UPDATE inbox SET crc32 = $2 WHERE id = $1`, id, int64(crc32))
	if err != nil {
		return fmt.Errorf("update crc32 of entry %d: %w", id, err)
	}
	return checkAffected(tag, fmt.Sprintf("inbox entry %d", id))
}

func (s *InboxStore) Reject(ctx context.Context, id int64, reason string) error {
	tag, err := s.db.Exec(ctx, `UPDATE inbox SET done = TRUE, reject_reason = $2 WHERE id = $1 AND NOT done`, id, reason)
	if err != nil {
		return fmt.Errorf("reject entry %d: %w", id, err)
	}
	return finalized(tag)
}

func (s *InboxStore) Done(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE inbox SET done = TRUE WHERE id = $1 AND NOT done`, id)
	if err != nil {
		return fmt.Errorf("mark entry %d done: %w", id, err)
	}
	return finalized(tag)
}

// finalized turns "no row changed" into ErrNoPendingEntry. The NOT done
// guard makes the transition happen at most once per entry.
func finalized(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return core.ErrNoPendingEntry
	}
	return nil
}

func (s *InboxStore) FindToNotify(ctx context.Context) ([]core.InboxEntry, error) {
	entries, err := s.queryEntries(ctx, " WHERE i.done AND NOT i.notified ORDER BY i.id")
	if err != nil {
		return nil, fmt.Errorf("find entries to notify: %w", err)
	}
	return entries, nil
}

func (s *InboxStore) UpdateNotified(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, `UPDATE inbox SET notified = TRUE WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("mark %d entries notified: %w", len(ids), err)
	}
	return nil
}
