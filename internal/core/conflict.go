package core

import (
	"context"

	"github.com/JonMunkholm/stationinbox/internal/logging"
)

// ConflictDetector flags submissions overlapping with an existing photo,
// another pending entry, or an existing station nearby.
//
// The checks are advisory. They never fail: a store error is logged and
// treated as "no conflict", and missing data short-circuits to false.
type ConflictDetector struct {
	inbox    InboxStore
	stations StationStore
	radiusKm float64
}

// NewConflictDetector creates a detector using radiusKm as the proximity
// radius. A non-positive radius falls back to DefaultNearbyRadiusKm.
func NewConflictDetector(inbox InboxStore, stations StationStore, radiusKm float64) *ConflictDetector {
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	return &ConflictDetector{inbox: inbox, stations: stations, radiusKm: radiusKm}
}

// StationConflict is true if the station already has a primary photo or
// another pending entry (other than excludeID) targets the same station.
func (d *ConflictDetector) StationConflict(ctx context.Context, excludeID int64, station *Station) bool {
	if station == nil {
		return false
	}
	if station.HasPhoto() {
		return true
	}
	n, err := d.inbox.CountPendingForStation(ctx, excludeID, station.Key)
	if err != nil {
		logging.FromContext(ctx).Warn("conflict check: counting pending entries for station failed",
			"station", station.Key.String(), "error", err)
		return false
	}
	return n > 0
}

// CoordinatesConflict is true if another pending entry or an existing
// station lies within the proximity radius of coords.
func (d *ConflictDetector) CoordinatesConflict(ctx context.Context, excludeID int64, coords *Coordinates) bool {
	c, ok := present(coords)
	if !ok {
		return false
	}

	log := logging.FromContext(ctx)
	n, err := d.inbox.CountPendingNearby(ctx, excludeID, c, d.radiusKm)
	if err != nil {
		log.Warn("conflict check: counting nearby pending entries failed", "coordinates", c.String(), "error", err)
	} else if n > 0 {
		return true
	}

	n, err = d.stations.CountNearby(ctx, c, d.radiusKm)
	if err != nil {
		log.Warn("conflict check: counting nearby stations failed", "coordinates", c.String(), "error", err)
		return false
	}
	return n > 0
}
