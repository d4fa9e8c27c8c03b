package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/stationinbox/internal/logging"
)

// StationResolver finds the station an inbox entry refers to, or creates it
// from the entry and the administrator's overrides.
type StationResolver struct {
	stations  StationStore
	countries CountryStore
	conflicts *ConflictDetector
}

// NewStationResolver creates a resolver.
func NewStationResolver(stations StationStore, countries CountryStore, conflicts *ConflictDetector) *StationResolver {
	return &StationResolver{stations: stations, countries: countries, conflicts: conflicts}
}

// Find looks a station up by country and id. A blank country falls back to
// a lookup by id alone; a blank id never matches.
func (r *StationResolver) Find(ctx context.Context, country, id string) (*Station, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	country = strings.TrimSpace(country)
	if country == "" {
		return r.stations.FindByID(ctx, id)
	}
	return r.stations.FindByKey(ctx, StationKey{Country: country, ID: id})
}

// MustFind is Find that turns "absent" into a "Station not found" bad request.
func (r *StationResolver) MustFind(ctx context.Context, key StationKey) (Station, error) {
	station, err := r.Find(ctx, key.Country, key.ID)
	if err != nil {
		return Station{}, fmt.Errorf("find station %s: %w", key, err)
	}
	if station == nil {
		return Station{}, badRequest(reasonStationNotFound)
	}
	return *station, nil
}

// FindOrCreate resolves the station for entry:
//
//  1. by the entry's own country and station id;
//  2. with cmd.CreateStation, by the command's country and station id;
//  3. otherwise, for a station-less entry with cmd.CreateStation, by
//     creating a new station from the command overrides and the entry.
func (r *StationResolver) FindOrCreate(ctx context.Context, entry InboxEntry, cmd InboxCommand) (Station, error) {
	log := logging.WithFields(ctx, "entry_id", entry.ID)

	station, err := r.Find(ctx, entry.CountryCode, entry.StationID)
	if err != nil {
		return Station{}, fmt.Errorf("find station for entry %d: %w", entry.ID, err)
	}

	if station == nil && cmd.CreateStation {
		station, err = r.Find(ctx, cmd.CountryCode, cmd.StationID)
		if err != nil {
			return Station{}, fmt.Errorf("find command station %s:%s: %w", cmd.CountryCode, cmd.StationID, err)
		}
		if station != nil {
			log.Info("importing missing station upload into existing station", "station", station.Key.String())
		}
	}
	if station != nil {
		return *station, nil
	}

	if !cmd.CreateStation || strings.TrimSpace(entry.StationID) != "" {
		return Station{}, badRequest(reasonStationNotFound)
	}
	return r.create(ctx, entry, cmd)
}

func (r *StationResolver) create(ctx context.Context, entry InboxEntry, cmd InboxCommand) (Station, error) {
	countryCode := strings.ToLower(strings.TrimSpace(cmd.CountryCode))
	country, err := r.countries.FindByCode(ctx, countryCode)
	if err != nil {
		return Station{}, fmt.Errorf("find country %q: %w", countryCode, err)
	}
	if country == nil {
		return Station{}, badRequest(reasonCountryNotFound)
	}

	stationID := strings.TrimSpace(cmd.StationID)
	if stationID == "" {
		return Station{}, badRequest("Station ID can't be empty")
	}
	if !cmd.IgnoreConflict && r.conflicts.CoordinatesConflict(ctx, entry.ID, entry.Coordinates) {
		return Station{}, badRequest("There is a conflict with a nearby station")
	}
	if cmd.HasCoordinates() && !cmd.Coordinates.IsValid() {
		return Station{}, badRequest("Lat/Lon out of range")
	}

	station := Station{
		Key:       StationKey{Country: country.Code, ID: stationID},
		Title:     entry.Title,
		ShortCode: cmd.ShortCode,
		Active:    true,
	}
	if entry.Coordinates != nil {
		station.Coordinates = *entry.Coordinates
	}
	if cmd.HasCoordinates() {
		station.Coordinates = *cmd.Coordinates
	}
	if t := strings.TrimSpace(cmd.Title); t != "" {
		station.Title = t
	}
	switch {
	case cmd.Active != nil:
		station.Active = *cmd.Active
	case entry.Active != nil:
		station.Active = *entry.Active
	}

	if err := r.stations.Insert(ctx, station); err != nil {
		return Station{}, fmt.Errorf("insert station %s: %w", station.Key, err)
	}
	logging.WithFields(ctx, "entry_id", entry.ID).Info("station created",
		"station", station.Key.String(), "title", station.Title)

	created, err := r.stations.FindByKey(ctx, station.Key)
	if err != nil {
		return Station{}, fmt.Errorf("reload station %s: %w", station.Key, err)
	}
	if created == nil {
		return station, nil
	}
	return *created, nil
}
