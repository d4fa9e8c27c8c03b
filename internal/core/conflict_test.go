package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

func TestConflictDetector_StationConflict(t *testing.T) {
	f := newFixture(t)
	d := core.NewConflictDetector(f.db.Inbox(), f.db.Stations(), core.DefaultNearbyRadiusKm)

	assert.False(t, d.StationConflict(f.ctx, 0, nil))
	assert.False(t, d.StationConflict(f.ctx, 0, f.station(keyNoPhoto)))
	assert.True(t, d.StationConflict(f.ctx, 0, f.station(keyWithPhoto)))

	resp := f.upload(jpegUpload(keyNoPhoto))
	assert.True(t, d.StationConflict(f.ctx, 0, f.station(keyNoPhoto)))
	assert.False(t, d.StationConflict(f.ctx, resp.ID, f.station(keyNoPhoto)), "an entry never conflicts with itself")
}

func TestConflictDetector_CoordinatesConflict(t *testing.T) {
	f := newFixture(t)
	// zero radius falls back to DefaultNearbyRadiusKm
	d := core.NewConflictDetector(f.db.Inbox(), f.db.Stations(), 0)

	assert.False(t, d.CoordinatesConflict(f.ctx, 0, nil))
	assert.False(t, d.CoordinatesConflict(f.ctx, 0, &core.Coordinates{}))

	// about 330 m north of the station without photo
	near := &core.Coordinates{Lat: 50.003, Lon: 9.0}
	assert.True(t, d.CoordinatesConflict(f.ctx, 0, near))

	// about 1.1 km north
	far := &core.Coordinates{Lat: 50.01, Lon: 9.0}
	assert.False(t, d.CoordinatesConflict(f.ctx, 0, far))

	lonely := &core.Coordinates{Lat: 45.0, Lon: 5.0}
	assert.False(t, d.CoordinatesConflict(f.ctx, 0, lonely))
	resp := f.upload(missingStationUpload("Lonely", 45.001, 5.0))
	assert.True(t, d.CoordinatesConflict(f.ctx, 0, lonely))
	assert.False(t, d.CoordinatesConflict(f.ctx, resp.ID, lonely))
}

func TestNewService_MissingDependencies(t *testing.T) {
	_, err := core.NewService(core.Deps{}, core.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inbox store")
	assert.Contains(t, err.Error(), "photo storage")
}
