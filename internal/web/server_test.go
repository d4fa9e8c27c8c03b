package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"hash/crc32"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stationinbox/internal/config"
	"github.com/JonMunkholm/stationinbox/internal/core"
	"github.com/JonMunkholm/stationinbox/internal/storage"
	"github.com/JonMunkholm/stationinbox/internal/store/memory"
	"github.com/JonMunkholm/stationinbox/internal/web/middleware"
)

const (
	secret  = "web-test-secret"
	maxSize = 1000
)

var (
	photographer = core.User{ID: 1, Name: "nickname", Email: "nick@example.org", EmailVerified: true, License: "CC0 1.0"}
	unverified   = core.User{ID: 2, Name: "newbie", Email: "new@example.org"}
	admin        = core.User{ID: 9, Name: "admin", Email: "admin@example.org", EmailVerified: true, Admin: true}
)

type testEnv struct {
	srv *Server
	db  *memory.DB
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 10 * time.Second},
		Security: config.SecurityConfig{JWTSecret: secret, EnableCSP: true},
		Storage:  config.StorageConfig{MaxUploadSize: maxSize},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config, health HealthCheck) *testEnv {
	t.Helper()

	db := memory.New()
	for _, u := range []core.User{photographer, unverified, admin} {
		db.PutUser(u)
	}
	db.PutCountry(core.Country{Code: "de", Name: "Deutschland", Active: true})
	db.PutStation(core.Station{
		Key:         core.StationKey{Country: "de", ID: "4711"},
		Title:       "Lummerland",
		Coordinates: core.Coordinates{Lat: 50.0, Lon: 9.0},
		Active:      true,
	})

	store, err := storage.NewFileStorage(t.TempDir(), maxSize)
	require.NoError(t, err)

	svc, err := core.NewService(core.Deps{
		Inbox:     db.Inbox(),
		Stations:  db.Stations(),
		Photos:    db.Photos(),
		Users:     db.Users(),
		Countries: db.Countries(),
		Storage:   store,
	}, core.Options{InboxBaseURL: "https://inbox.example.org/inbox", NearbyRadiusKm: 0.5})
	require.NoError(t, err)

	srv := NewServer(svc, cfg, health)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, db: db}
}

func token(t *testing.T, user core.User) string {
	t.Helper()
	tok, err := middleware.NewToken(secret, user, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, req *http.Request, user *core.User) *httptest.ResponseRecorder {
	t.Helper()
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *user))
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, user *core.User, body []byte, headers map[string]string) (*httptest.ResponseRecorder, core.InboxResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/photoUpload", bytes.NewReader(body))
	req.Header.Set("User-Agent", "RSAPI-Test/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := e.do(t, req, user)
	var resp core.InboxResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func postJSON(path string, v any) *http.Request {
	body, _ := json.Marshal(v)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPhotoUpload_ExistingStation(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	body := []byte("jpeg-bytes")

	rec, resp := env.upload(t, &photographer, body, map[string]string{
		"Station-Id":   "4711",
		"Country":      "de",
		"Content-Type": "image/jpeg",
		"Comment":      "Sch%C3%B6nes+Licht",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, core.StateReview, resp.State)
	require.NotZero(t, resp.ID)
	assert.True(t, strings.HasSuffix(resp.Filename, ".jpg"))
	assert.Equal(t, "https://inbox.example.org/inbox/"+resp.Filename, resp.InboxURL)
	require.NotNil(t, resp.Crc32)
	assert.Equal(t, crc32.ChecksumIEEE(body), *resp.Crc32)

	entry, ok := env.db.Entry(resp.ID)
	require.True(t, ok)
	assert.Equal(t, "Schönes Licht", entry.Comment)
	assert.Equal(t, int64(1), entry.PhotographerID)
}

func TestPhotoUpload_SecondUploadConflicts(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	headers := map[string]string{"Station-Id": "4711", "Country": "de", "Content-Type": "image/png"}

	rec, _ := env.upload(t, &photographer, []byte("one"), headers)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, resp := env.upload(t, &photographer, []byte("two"), headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, core.StateConflict, resp.State)
	assert.True(t, strings.HasSuffix(resp.Filename, ".png"))
}

func TestPhotoUpload_MissingStation(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	rec, resp := env.upload(t, &photographer, []byte("jpeg"), map[string]string{
		"Country":       "de",
		"Station-Title": "Neu%20Bahnhof",
		"Latitude":      "52.5",
		"Longitude":     "13.4",
		"Active":        "false",
		"Content-Type":  "image/jpeg",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	entry, ok := env.db.Entry(resp.ID)
	require.True(t, ok)
	assert.Equal(t, "Neu Bahnhof", entry.Title)
	assert.Empty(t, entry.StationID)
	require.NotNil(t, entry.Coordinates)
	assert.Equal(t, core.Coordinates{Lat: 52.5, Lon: 13.4}, *entry.Coordinates)
	require.NotNil(t, entry.Active)
	assert.False(t, *entry.Active)
}

func TestPhotoUpload_Refusals(t *testing.T) {
	tests := []struct {
		name    string
		user    *core.User
		body    []byte
		headers map[string]string
		status  int
		state   core.ResponseState
	}{
		{
			name:    "unverified email",
			user:    &unverified,
			body:    []byte("jpeg"),
			headers: map[string]string{"Station-Id": "4711", "Country": "de", "Content-Type": "image/jpeg"},
			status:  http.StatusUnauthorized,
			state:   core.StateUnauthorized,
		},
		{
			name:    "unsupported content type",
			user:    &photographer,
			body:    []byte("gif"),
			headers: map[string]string{"Station-Id": "4711", "Country": "de", "Content-Type": "image/gif"},
			status:  http.StatusBadRequest,
			state:   core.StateUnsupportedContentType,
		},
		{
			name:    "latitude not a number",
			user:    &photographer,
			body:    []byte("jpeg"),
			headers: map[string]string{"Station-Title": "X", "Latitude": "north", "Longitude": "13", "Content-Type": "image/jpeg"},
			status:  http.StatusBadRequest,
			state:   core.StateLatLonOutOfRange,
		},
		{
			name:    "coordinates out of range",
			user:    &photographer,
			body:    []byte("jpeg"),
			headers: map[string]string{"Station-Title": "X", "Latitude": "91", "Longitude": "13", "Content-Type": "image/jpeg"},
			status:  http.StatusBadRequest,
			state:   core.StateLatLonOutOfRange,
		},
		{
			name:    "unknown station without position",
			user:    &photographer,
			body:    []byte("jpeg"),
			headers: map[string]string{"Station-Id": "9999", "Country": "de", "Content-Type": "image/jpeg"},
			status:  http.StatusBadRequest,
			state:   core.StateNotEnoughData,
		},
		{
			name:    "too large",
			user:    &photographer,
			body:    bytes.Repeat([]byte("x"), maxSize+1),
			headers: map[string]string{"Station-Id": "4711", "Country": "de", "Content-Type": "image/jpeg"},
			status:  http.StatusRequestEntityTooLarge,
			state:   core.StatePhotoTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testConfig(), nil)
			rec, resp := env.upload(t, tt.user, tt.body, tt.headers)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.state, resp.State)
		})
	}
}

func TestPhotoUpload_RequiresToken(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	rec, _ := env.upload(t, nil, []byte("jpeg"), map[string]string{"Content-Type": "image/jpeg"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPhotoUploadMultipart(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("stationId", "4711"))
	require.NoError(t, mw.WriteField("countryCode", "de"))
	require.NoError(t, mw.WriteField("comment", "from the form"))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="photo.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/photoUploadMultipartFormdata", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := env.do(t, req, &photographer)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp core.InboxResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasSuffix(resp.Filename, ".png"))
	entry, ok := env.db.Entry(resp.ID)
	require.True(t, ok)
	assert.Equal(t, "from the form", entry.Comment)
}

func TestPhotoUploadMultipart_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("stationId", "4711"))
	require.NoError(t, mw.WriteField("countryCode", "de"))
	part, err := mw.CreateFormFile("file", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), maxSize+multipartOverhead+1))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/photoUploadMultipartFormdata", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := env.do(t, req, &photographer)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())

	var resp core.InboxResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, core.StatePhotoTooLarge, resp.State)
	assert.Contains(t, resp.Message, "max 1000 bytes")

	pending, err := env.db.Inbox().FindPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReportProblem(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	rec := env.do(t, postJSON("/api/reportProblem", core.ProblemReport{
		CountryCode: "de", StationID: "4711", Type: core.WrongName, Comment: "It is called Lummerstadt",
	}), &photographer)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp core.InboxResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, core.StateReview, resp.State)

	rec = env.do(t, postJSON("/api/reportProblem", core.ProblemReport{
		CountryCode: "de", StationID: "4711", Type: core.WrongPhoto, Comment: "no photo yet",
	}), &photographer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/reportProblem", strings.NewReader("{not json"))
	rec = env.do(t, req, &photographer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserInbox(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	_, uploaded := env.upload(t, &photographer, []byte("jpeg"), map[string]string{
		"Station-Id": "4711", "Country": "de", "Content-Type": "image/jpeg",
	})

	rec := env.do(t, postJSON("/api/userInbox", []core.InboxStateQuery{
		{ID: uploaded.ID},
		{ID: 4242},
	}), &photographer)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []core.InboxStateQuery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, core.StateReview, got[0].State)
	assert.Equal(t, uploaded.Filename, got[0].Filename)
	assert.Equal(t, core.StateUnknown, got[1].State)

	// another photographer must not see the entry
	other := admin
	rec = env.do(t, postJSON("/api/userInbox", []core.InboxStateQuery{{ID: uploaded.ID}}), &other)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, core.StateUnknown, got[0].State)
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	for _, path := range []string{"/api/adminInbox", "/api/adminInboxCount", "/api/nextZ", "/admin/inbox"} {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, path, nil), &photographer)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)

		rec = env.do(t, httptest.NewRequest(http.MethodGet, path, nil), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAdminInbox_ListCountAndNextZ(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	_, uploaded := env.upload(t, &photographer, []byte("jpeg"), map[string]string{
		"Station-Id": "4711", "Country": "de", "Content-Type": "image/jpeg",
	})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/adminInbox", nil), &admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []core.AdminInboxEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, uploaded.ID, entries[0].ID)
	assert.Equal(t, uploaded.InboxURL, entries[0].InboxURL)
	assert.False(t, entries[0].Processed)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/adminInboxCount", nil), &admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pendingInboxEntries":1}`, rec.Body.String())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/nextZ", nil), &admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"nextZ":"Z1"}`, rec.Body.String())
}

func TestAdminCommand(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	_, uploaded := env.upload(t, &photographer, []byte("jpeg"), map[string]string{
		"Station-Id": "4711", "Country": "de", "Content-Type": "image/jpeg",
	})

	reject := map[string]any{"id": uploaded.ID, "command": "reject", "rejectReason": "blurry"}
	rec := env.do(t, postJSON("/api/adminInbox", reject), &admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":200,"message":"ok"}`, rec.Body.String())

	entry, ok := env.db.Entry(uploaded.ID)
	require.True(t, ok)
	assert.True(t, entry.IsRejected())
	assert.Equal(t, "blurry", *entry.RejectReason)

	// the entry is no longer pending
	rec = env.do(t, postJSON("/api/adminInbox", reject), &admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var result CommandResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Equal(t, "No pending inbox entry found", result.Message)

	rec = env.do(t, postJSON("/api/adminInbox", map[string]any{"id": uploaded.ID, "command": "EXPLODE"}), &admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result.Message, "EXPLODE")
}

func TestAdminInboxPage(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	env.upload(t, &photographer, []byte("jpeg"), map[string]string{
		"Station-Id": "4711", "Country": "de", "Content-Type": "image/jpeg", "Comment": "<script>alert(1)</script>",
	})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/admin/inbox", nil), &admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	html := rec.Body.String()
	assert.Contains(t, html, "de:4711")
	assert.Contains(t, html, "1 pending")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>")
}

func TestPublicInbox(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	env.upload(t, &photographer, []byte("jpeg"), map[string]string{
		"Station-Title": "Neu Bahnhof", "Latitude": "52.5", "Longitude": "13.4", "Content-Type": "image/jpeg",
	})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/publicInbox", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []core.PublicInboxEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Neu Bahnhof", entries[0].Title)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/publicInbox.geojson", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	require.True(t, f.Geometry.IsPoint())
	assert.Equal(t, []float64{13.4, 52.5}, f.Geometry.Point)
	assert.Equal(t, "Neu Bahnhof", f.PropertyMustString("title"))
	_, hasStation := f.Properties["stationId"]
	assert.False(t, hasStation)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	env = newTestEnv(t, testConfig(), func(context.Context) error { return errors.New("db down") })
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	cfg := testConfig()
	cfg.Security.EnableCSP = false
	env = newTestEnv(t, cfg, nil)
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, UploadLimit: 1}
	env := newTestEnv(t, cfg, nil)

	get := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		return env.do(t, req, nil)
	}
	assert.Equal(t, http.StatusOK, get("192.0.2.1:1000").Code)
	assert.Equal(t, http.StatusOK, get("192.0.2.1:1001").Code)
	rec := get("192.0.2.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, get("192.0.2.2:1000").Code)
}

func TestRateLimit_UploadsHaveTheirOwnLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	env := newTestEnv(t, cfg, nil)
	headers := map[string]string{"Station-Id": "4711", "Country": "de", "Content-Type": "image/jpeg"}

	rec, _ := env.upload(t, &photographer, []byte("a"), headers)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec, _ = env.upload(t, &photographer, []byte("b"), headers)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/publicInbox", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRespondError_HTMLForPages(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/inbox", nil)
	rec := httptest.NewRecorder()
	respondError(rec, req, core.ErrStorageBusy, statusFor(core.ErrStorageBusy))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "STO001")
}

func TestIntakeStatus(t *testing.T) {
	assert.Equal(t, http.StatusAccepted, intakeStatus(core.StateReview))
	assert.Equal(t, http.StatusConflict, intakeStatus(core.StateConflict))
	assert.Equal(t, http.StatusUnauthorized, intakeStatus(core.StateUnauthorized))
	assert.Equal(t, http.StatusBadRequest, intakeStatus(core.StateNotEnoughData))
	assert.Equal(t, http.StatusBadRequest, intakeStatus(core.StateLatLonOutOfRange))
	assert.Equal(t, http.StatusBadRequest, intakeStatus(core.StateUnsupportedContentType))
	assert.Equal(t, http.StatusRequestEntityTooLarge, intakeStatus(core.StatePhotoTooLarge))
	assert.Equal(t, http.StatusInternalServerError, intakeStatus(core.StateError))
}
