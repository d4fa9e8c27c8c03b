package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// PhotoStore implements core.PhotoStore.
type PhotoStore struct {
	db DBTX
}

var _ core.PhotoStore = (*PhotoStore)(nil)

func (s *PhotoStore) Insert(ctx context.Context, photo core.Photo) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `INSERT INTO photos
		(country_code, station_id, url_path, license, photographer_id, created_at, is_primary, outdated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		photo.StationKey.Country, photo.StationKey.ID, photo.URLPath, photo.License,
		photo.PhotographerID, photo.CreatedAt, photo.Primary, photo.Outdated,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert photo for %s: %w", photo.StationKey, err)
	}
	return id, nil
}

func (s *PhotoStore) Update(ctx context.Context, photo core.Photo) error {
	tag, err := s.db.Exec(ctx, `UPDATE photos
		SET url_path = $2, license = $3, photographer_id = $4, created_at = $5, is_primary = $6, outdated = $7
		WHERE id = $1`,
		photo.ID, photo.URLPath, photo.License, photo.PhotographerID, photo.CreatedAt, photo.Primary, photo.Outdated)
	if err != nil {
		return fmt.Errorf("update photo %d: %w", photo.ID, err)
	}
	return checkAffected(tag, fmt.Sprintf("photo %d", photo.ID))
}

func (s *PhotoStore) UpdateOutdated(ctx context.Context, key core.StationKey) error {
	_, err := s.db.Exec(ctx, `UPDATE photos SET outdated = TRUE
		WHERE country_code = $1 AND station_id = $2 AND is_primary`, key.Country, key.ID)
	if err != nil {
		return fmt.Errorf("mark photo of %s outdated: %w", key, err)
	}
	return nil
}

func (s *PhotoStore) Delete(ctx context.Context, key core.StationKey) error {
	_, err := s.db.Exec(ctx, `DELETE FROM photos WHERE country_code = $1 AND station_id = $2`, key.Country, key.ID)
	if err != nil {
		return fmt.Errorf("delete photos of %s: %w", key, err)
	}
	return nil
}

// UserStore implements core.UserStore.
type UserStore struct {
	db DBTX
}

var _ core.UserStore = (*UserStore)(nil)

func (s *UserStore) FindByID(ctx context.Context, id int64) (*core.User, error) {
	var (
		u              core.User
		email, license pgtype.Text
	)
	err := s.db.QueryRow(ctx, `SELECT id, name, email, email_verified, admin, license, send_notifications
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &email, &u.EmailVerified, &u.Admin, &license, &u.SendNotifications)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	u.Email = email.String
	u.License = license.String
	return &u, nil
}

// CountryStore implements core.CountryStore.
type CountryStore struct {
	db DBTX
}

var _ core.CountryStore = (*CountryStore)(nil)

func (s *CountryStore) FindByCode(ctx context.Context, code string) (*core.Country, error) {
	var (
		c        core.Country
		override pgtype.Text
	)
	err := s.db.QueryRow(ctx, `SELECT id, name, override_license, active FROM countries WHERE id = $1`, code).
		Scan(&c.Code, &c.Name, &override, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find country %q: %w", code, err)
	}
	c.OverrideLicense = override.String
	return &c, nil
}
