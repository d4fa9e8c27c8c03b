package core_test

import (
	"bytes"
	"context"
	"errors"
	"hash/crc32"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stationinbox/internal/core"
	"github.com/JonMunkholm/stationinbox/internal/store/memory"
)

const (
	inboxBaseURL   = "https://inbox.example.org/inbox"
	clientInfo     = "RSAPI-Test/1.0"
	photographerID = 1
	unverifiedID   = 2
	otherUserID    = 3
	adminID        = 9
	overrideCC0    = "CC0 1.0 Universell (CC0 1.0)"
)

var (
	keyNoPhoto   = core.StationKey{Country: "de", ID: "4711"}
	keyWithPhoto = core.StationKey{Country: "de", ID: "4712"}
	keySwiss     = core.StationKey{Country: "ch", ID: "8503000"}

	// stations in the fixture, far apart from each other
	coordsNoPhoto   = core.Coordinates{Lat: 50.0, Lon: 9.0}
	coordsWithPhoto = core.Coordinates{Lat: 51.0, Lon: 10.0}
	coordsSwiss     = core.Coordinates{Lat: 47.378, Lon: 8.54}
)

type fakeStorage struct {
	mu        sync.Mutex
	maxSize   int64
	files     map[string][]byte
	processed map[string]bool
	imported  map[string]core.StationKey
	done      map[string][]byte
	rejected  []string

	storeErr  error
	importErr error
	rejectErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		maxSize:   1 << 20,
		files:     make(map[string][]byte),
		processed: make(map[string]bool),
		imported:  make(map[string]core.StationKey),
		done:      make(map[string][]byte),
	}
}

func (f *fakeStorage) StoreUpload(_ context.Context, body io.Reader, filename string) (uint32, error) {
	if f.storeErr != nil {
		return 0, f.storeErr
	}
	data, err := io.ReadAll(io.LimitReader(body, f.maxSize+1))
	if err != nil {
		return 0, err
	}
	if int64(len(data)) > f.maxSize {
		return 0, &core.PhotoTooLargeError{MaxSize: f.maxSize}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[filename] = data
	return crc32.ChecksumIEEE(data), nil
}

func (f *fakeStorage) IsProcessed(_ context.Context, filename string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed[filename]
}

func (f *fakeStorage) UploadFile(filename string) string    { return "/work/inbox/" + filename }
func (f *fakeStorage) InboxFile(filename string) string     { return "/work/inbox/" + filename }
func (f *fakeStorage) ProcessedFile(filename string) string { return "/work/inbox/processed/" + filename }

func (f *fakeStorage) ImportPhoto(_ context.Context, entry core.InboxEntry, station core.Station) error {
	if f.importErr != nil {
		return f.importErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[entry.Filename()]
	if !ok {
		return errors.New("upload file missing")
	}
	delete(f.files, entry.Filename())
	f.done[entry.Filename()] = data
	f.imported[entry.Filename()] = station.Key
	return nil
}

func (f *fakeStorage) UnimportPhoto(_ context.Context, entry core.InboxEntry, _ core.Station) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.done[entry.Filename()]
	if !ok {
		return errors.New("imported file missing")
	}
	f.files[entry.Filename()] = data
	delete(f.done, entry.Filename())
	delete(f.imported, entry.Filename())
	return nil
}

func (f *fakeStorage) Reject(_ context.Context, entry core.InboxEntry) error {
	if f.rejectErr != nil {
		return f.rejectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, entry.Filename())
	f.rejected = append(f.rejected, entry.Filename())
	return nil
}

func (f *fakeStorage) CleanupOldCopies(context.Context, time.Duration) (int, error) {
	return 0, nil
}

// flakyInbox fails the next Done or UpdateCrc32 call with the configured error.
type flakyInbox struct {
	core.InboxStore
	doneErr  error
	crc32Err error
}

func (i *flakyInbox) Done(ctx context.Context, id int64) error {
	if err := i.doneErr; err != nil {
		i.doneErr = nil
		return err
	}
	return i.InboxStore.Done(ctx, id)
}

func (i *flakyInbox) UpdateCrc32(ctx context.Context, id int64, crc uint32) error {
	if err := i.crc32Err; err != nil {
		i.crc32Err = nil
		return err
	}
	return i.InboxStore.UpdateCrc32(ctx, id, crc)
}

type recordingMonitor struct {
	mu       sync.Mutex
	messages []core.MonitorMessage
}

func (m *recordingMonitor) SendMessage(_ context.Context, msg core.MonitorMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *recordingMonitor) last() core.MonitorMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return core.MonitorMessage{}
	}
	return m.messages[len(m.messages)-1]
}

type recordingBot struct {
	mu    sync.Mutex
	toots []core.Station
}

func (b *recordingBot) TootNewPhoto(_ context.Context, station core.Station, _ core.InboxEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toots = append(b.toots, station)
}

type sentMail struct {
	to      core.User
	subject string
	body    string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to core.User, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	db      *memory.DB
	storage *fakeStorage
	monitor *recordingMonitor
	social  *recordingBot
	mailer  *recordingMailer
	svc     *core.Service
	deps    core.Deps

	photographer core.User
	unverified   core.User
	otherUser    core.User
	admin        core.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		db:      memory.New(),
		storage: newFakeStorage(),
		monitor: &recordingMonitor{},
		social:  &recordingBot{},
		mailer:  &recordingMailer{},
		photographer: core.User{ID: photographerID, Name: "nickname", Email: "nick@example.org",
			EmailVerified: true, License: "CC BY-SA 4.0", SendNotifications: true},
		unverified: core.User{ID: unverifiedID, Name: "newbie", Email: "new@example.org"},
		otherUser: core.User{ID: otherUserID, Name: "someone", Email: "someone@example.org",
			EmailVerified: true, License: "CC0 1.0 Universell (CC0 1.0)"},
		admin: core.User{ID: adminID, Name: "admin", EmailVerified: true, Admin: true},
	}

	for _, u := range []core.User{f.photographer, f.unverified, f.otherUser, f.admin} {
		f.db.PutUser(u)
	}
	f.db.PutCountry(core.Country{Code: "de", Name: "Deutschland", Active: true})
	f.db.PutCountry(core.Country{Code: "ch", Name: "Schweiz", OverrideLicense: overrideCC0, Active: true})

	f.db.PutStation(core.Station{Key: keyNoPhoto, Title: "Lummerland", Coordinates: coordsNoPhoto, Active: true})
	f.db.PutStation(core.Station{Key: keyWithPhoto, Title: "Neverland", Coordinates: coordsWithPhoto, Active: true,
		Photos: []core.Photo{{URLPath: "/de/4712.jpg", PhotographerID: otherUserID, License: "CC0", Primary: true}}})
	f.db.PutStation(core.Station{Key: keySwiss, Title: "Zürich HB", Coordinates: coordsSwiss, Active: true})

	f.deps = core.Deps{
		Inbox:     f.db.Inbox(),
		Stations:  f.db.Stations(),
		Photos:    f.db.Photos(),
		Users:     f.db.Users(),
		Countries: f.db.Countries(),
		Storage:   f.storage,
		Monitor:   f.monitor,
		Social:    f.social,
		Mailer:    f.mailer,
	}
	f.svc = f.newService(f.deps)
	return f
}

func (f *fixture) newService(deps core.Deps) *core.Service {
	f.t.Helper()
	svc, err := core.NewService(deps, core.Options{InboxBaseURL: inboxBaseURL + "/"})
	require.NoError(f.t, err)
	return svc
}

// useInbox rebuilds the service on top of inbox.
func (f *fixture) useInbox(inbox core.InboxStore) {
	f.t.Helper()
	deps := f.deps
	deps.Inbox = inbox
	f.svc = f.newService(deps)
}

func jpegUpload(key core.StationKey) core.PhotoUpload {
	return core.PhotoUpload{
		ClientInfo:  clientInfo,
		Body:        bytes.NewReader([]byte("fake jpeg data")),
		CountryCode: key.Country,
		StationID:   key.ID,
		ContentType: "image/jpeg",
		Comment:     "nice light",
	}
}

func missingStationUpload(title string, lat, lon float64) core.PhotoUpload {
	return core.PhotoUpload{
		ClientInfo:  clientInfo,
		Body:        strings.NewReader("fake png data"),
		ContentType: "image/png",
		Title:       title,
		Lat:         &lat,
		Lon:         &lon,
	}
}

// upload submits a photo as the fixture photographer and requires it to be accepted for review.
func (f *fixture) upload(u core.PhotoUpload) core.InboxResponse {
	f.t.Helper()
	resp := f.svc.UploadPhoto(f.ctx, u, f.photographer)
	require.Contains(f.t, []core.ResponseState{core.StateReview, core.StateConflict}, resp.State, resp.Message)
	return resp
}

func (f *fixture) report(key core.StationKey, typ core.ProblemReportType) int64 {
	f.t.Helper()
	resp := f.svc.ReportProblem(f.ctx, core.ProblemReport{
		CountryCode: key.Country,
		StationID:   key.ID,
		Type:        typ,
		Comment:     "something is off",
	}, f.photographer, clientInfo)
	require.Equal(f.t, core.StateReview, resp.State, resp.Message)
	return resp.ID
}

func (f *fixture) command(id int64, cmd core.Command) error {
	return f.svc.ProcessAdminCommand(f.ctx, f.admin, core.InboxCommand{ID: id, Command: cmd})
}

func (f *fixture) reject(id int64, reason string) error {
	return f.svc.ProcessAdminCommand(f.ctx, f.admin, core.InboxCommand{
		ID: id, Command: core.CommandReject, RejectReason: reason,
	})
}

func (f *fixture) entry(id int64) core.InboxEntry {
	f.t.Helper()
	e, ok := f.db.Entry(id)
	require.True(f.t, ok, "entry %d", id)
	return e
}

func (f *fixture) station(key core.StationKey) *core.Station {
	f.t.Helper()
	s, err := f.db.Stations().FindByKey(f.ctx, key)
	require.NoError(f.t, err)
	return s
}

func badRequestReason(t *testing.T, err error) string {
	t.Helper()
	var br *core.BadRequestError
	require.True(t, errors.As(err, &br), "expected bad request, got %v", err)
	return br.Reason
}
