package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

var (
	keyA = core.StationKey{Country: "de", ID: "1"}
	keyB = core.StationKey{Country: "ch", ID: "1"}
	keyC = core.StationKey{Country: "de", ID: "2"}
)

func seeded(t *testing.T) *DB {
	t.Helper()
	db := New()
	db.PutUser(core.User{ID: 1, Name: "nickname", Email: "nick@example.org"})
	db.PutUser(core.User{ID: 2, Name: "other"})
	db.PutStation(core.Station{Key: keyA, Title: "Alpha", Coordinates: core.Coordinates{Lat: 50, Lon: 9}})
	db.PutStation(core.Station{Key: keyB, Title: "Beta", Coordinates: core.Coordinates{Lat: 47, Lon: 8}})
	db.PutStation(core.Station{Key: keyC, Title: "Gamma", Coordinates: core.Coordinates{Lat: 51, Lon: 10},
		Photos: []core.Photo{
			{URLPath: "/de/2_old.jpg", PhotographerID: 2},
			{URLPath: "/de/2.jpg", PhotographerID: 1, Primary: true},
		}})
	return db
}

func TestStationStore_FindByKeyJoinsPhotos(t *testing.T) {
	db := seeded(t)
	st, err := db.Stations().FindByKey(context.Background(), keyC)
	require.NoError(t, err)
	require.NotNil(t, st)
	require.Len(t, st.Photos, 2)
	assert.True(t, st.Photos[0].Primary, "primary photo comes first")
	assert.Equal(t, "nickname", st.Photos[0].PhotographerName)
	assert.True(t, st.HasPhoto())

	missing, err := db.Stations().FindByKey(context.Background(), core.StationKey{Country: "de", ID: "9"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStationStore_FindByID(t *testing.T) {
	db := seeded(t)
	ctx := context.Background()

	st, err := db.Stations().FindByID(ctx, "2")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, keyC, st.Key)

	ambiguous, err := db.Stations().FindByID(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, ambiguous)
}

func TestStationStore_MutationsAndMaxZ(t *testing.T) {
	db := seeded(t)
	ctx := context.Background()
	stations := db.Stations()

	require.Error(t, stations.Insert(ctx, core.Station{Key: keyA}))
	require.NoError(t, stations.Insert(ctx, core.Station{Key: core.StationKey{Country: "de", ID: "Z9"}}))
	require.NoError(t, stations.Insert(ctx, core.Station{Key: core.StationKey{Country: "de", ID: "Zabc"}}))

	highest, err := stations.MaxZ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, highest)

	require.NoError(t, stations.ChangeTitle(ctx, keyA, "Alpha Nord"))
	require.NoError(t, stations.UpdateActive(ctx, keyA, true))
	require.NoError(t, stations.UpdateLocation(ctx, keyA, core.Coordinates{Lat: 50.5, Lon: 9.5}))
	st, err := stations.FindByKey(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Nord", st.Title)
	assert.True(t, st.Active)
	assert.Equal(t, core.Coordinates{Lat: 50.5, Lon: 9.5}, st.Coordinates)

	assert.Error(t, stations.ChangeTitle(ctx, core.StationKey{Country: "xx", ID: "0"}, "x"))

	require.NoError(t, stations.Delete(ctx, keyA))
	st, err = stations.FindByKey(ctx, keyA)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestStationStore_CountNearby(t *testing.T) {
	db := seeded(t)
	n, err := db.Stations().CountNearby(context.Background(), core.Coordinates{Lat: 50.001, Lon: 9}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = db.Stations().CountNearby(context.Background(), core.Coordinates{Lat: 40, Lon: 9}, 0.5)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInboxStore_Lifecycle(t *testing.T) {
	db := seeded(t)
	ctx := context.Background()
	inbox := db.Inbox()

	first, err := inbox.Insert(ctx, core.NewStationPhotoEntry(keyA, "", "jpg", "", nil, 1))
	require.NoError(t, err)
	second, err := inbox.Insert(ctx, core.NewStationPhotoEntry(keyA, "", "jpg", "", nil, 1))
	require.NoError(t, err)
	report, err := inbox.Insert(ctx, core.NewProblemReportEntry(keyC, core.Other, "x", nil, "", 2))
	require.NoError(t, err)
	assert.Less(t, first, second)

	e, err := inbox.FindByID(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", e.Title)
	assert.Equal(t, "nickname", e.PhotographerName)
	assert.Equal(t, "nick@example.org", e.PhotographerEmail)

	newest, err := inbox.FindNewestPendingByStationAndPhotographer(ctx, keyA, 1)
	require.NoError(t, err)
	assert.Equal(t, second, newest.ID)

	n, err := inbox.CountPendingForStation(ctx, first, keyA)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, inbox.UpdateCrc32(ctx, first, 42))
	e, _ = inbox.FindByID(ctx, first)
	require.NotNil(t, e.Crc32)
	assert.Equal(t, uint32(42), *e.Crc32)

	require.NoError(t, inbox.Done(ctx, first))
	assert.ErrorIs(t, inbox.Done(ctx, first), core.ErrNoPendingEntry)
	assert.ErrorIs(t, inbox.Reject(ctx, first, "late"), core.ErrNoPendingEntry)
	assert.ErrorIs(t, inbox.Done(ctx, 999), core.ErrNoPendingEntry)
	require.NoError(t, inbox.Reject(ctx, report, "not a problem"))

	pending, err := inbox.FindPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].ID)

	count, err := inbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	toNotify, err := inbox.FindToNotify(ctx)
	require.NoError(t, err)
	require.Len(t, toNotify, 2)
	assert.Equal(t, first, toNotify[0].ID)
	require.NotNil(t, toNotify[1].RejectReason)
	assert.Equal(t, "not a problem", *toNotify[1].RejectReason)

	require.NoError(t, inbox.UpdateNotified(ctx, []int64{first, report}))
	toNotify, err = inbox.FindToNotify(ctx)
	require.NoError(t, err)
	assert.Empty(t, toNotify)
}

func TestInboxStore_NearbyAndPublic(t *testing.T) {
	db := seeded(t)
	ctx := context.Background()
	inbox := db.Inbox()

	_, err := inbox.Insert(ctx, core.NewStationPhotoEntry(keyB, "", "png", "", nil, 1))
	require.NoError(t, err)
	missing, err := inbox.Insert(ctx, core.NewMissingStationEntry("de", "New", core.Coordinates{Lat: 45, Lon: 5}, "jpg", "", nil, 1))
	require.NoError(t, err)
	_, err = inbox.Insert(ctx, core.NewProblemReportEntry(keyA, core.WrongLocation, "x", &core.Coordinates{Lat: 45.001, Lon: 5}, "", 1))
	require.NoError(t, err)

	n, err := inbox.CountPendingNearby(ctx, missing, core.Coordinates{Lat: 45, Lon: 5}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "problem report with coordinates counts, the excluded entry does not")

	public, err := inbox.FindPublic(ctx)
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, core.PublicInboxEntry{CountryCode: "ch", StationID: "1", Title: "Beta", Coordinates: core.Coordinates{Lat: 47, Lon: 8}}, public[0])
	assert.Equal(t, "New", public[1].Title)
	assert.Equal(t, core.Coordinates{Lat: 45, Lon: 5}, public[1].Coordinates)
}

func TestPhotoStore(t *testing.T) {
	db := seeded(t)
	ctx := context.Background()
	photos := db.Photos()

	id, err := photos.Insert(ctx, core.Photo{StationKey: keyA, URLPath: "/de/1.jpg", PhotographerID: 1, Primary: true})
	require.NoError(t, err)

	require.NoError(t, photos.UpdateOutdated(ctx, keyA))
	st, _ := db.Stations().FindByKey(ctx, keyA)
	require.Len(t, st.Photos, 1)
	assert.True(t, st.Photos[0].Outdated)

	p := st.Photos[0]
	p.URLPath = "/de/1.png"
	require.NoError(t, photos.Update(ctx, p))
	assert.Error(t, photos.Update(ctx, core.Photo{ID: id + 100}))

	require.NoError(t, photos.Delete(ctx, keyA))
	st, _ = db.Stations().FindByKey(ctx, keyA)
	assert.Empty(t, st.Photos)
}

func TestUserAndCountryStores(t *testing.T) {
	db := seeded(t)
	db.PutCountry(core.Country{Code: "de", Name: "Deutschland"})
	ctx := context.Background()

	u, err := db.Users().FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "nickname", u.Name)
	u, err = db.Users().FindByID(ctx, 77)
	require.NoError(t, err)
	assert.Nil(t, u)

	c, err := db.Countries().FindByCode(ctx, "de")
	require.NoError(t, err)
	assert.Equal(t, "Deutschland", c.Name)
	c, err = db.Countries().FindByCode(ctx, "fr")
	require.NoError(t, err)
	assert.Nil(t, c)
}
