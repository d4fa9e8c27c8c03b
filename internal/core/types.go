package core

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// StationKey identifies a station within a country.
type StationKey struct {
	Country string `json:"country"`
	ID      string `json:"id"`
}

func (k StationKey) String() string {
	return k.Country + ":" + k.ID
}

// Station is a snapshot of a railway station as persisted in the StationStore.
// Photos are ordered; the first one is the primary photo.
type Station struct {
	Key         StationKey  `json:"key"`
	Title       string      `json:"title"`
	Coordinates Coordinates `json:"coordinates"`
	ShortCode   string      `json:"shortCode,omitempty"`
	Active      bool        `json:"active"`
	Photos      []Photo     `json:"photos,omitempty"`
}

// PrimaryPhoto returns the canonical display photo of the station.
func (s Station) PrimaryPhoto() (Photo, bool) {
	for _, p := range s.Photos {
		if p.Primary {
			return p, true
		}
	}
	if len(s.Photos) > 0 {
		return s.Photos[0], true
	}
	return Photo{}, false
}

// HasPhoto reports whether the station already has a primary photo.
func (s Station) HasPhoto() bool {
	_, ok := s.PrimaryPhoto()
	return ok
}

// Photo is an imported station photo.
type Photo struct {
	ID               int64      `json:"id"`
	StationKey       StationKey `json:"stationKey"`
	URLPath          string     `json:"urlPath"`
	PhotographerID   int64      `json:"photographerId"`
	PhotographerName string     `json:"photographer,omitempty"`
	License          string     `json:"license"`
	CreatedAt        time.Time  `json:"createdAt"`
	Primary          bool       `json:"primary"`
	Outdated         bool       `json:"outdated"`
}

// PhotoURLPath is the storage-relative path of an imported photo.
func PhotoURLPath(key StationKey, extension string) string {
	return "/" + key.Country + "/" + key.ID + "." + extension
}

// User is the authenticated photographer or administrator.
type User struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"emailVerified"`
	Admin             bool   `json:"admin"`
	License           string `json:"license,omitempty"`
	SendNotifications bool   `json:"sendNotifications"`
}

// Country holds the per-country settings relevant for imports.
type Country struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	OverrideLicense string `json:"overrideLicense,omitempty"`
	Active          bool   `json:"active"`
}

// LicenseFor returns the license an imported photo gets. Some countries
// override the photographer's license because of freedom-of-panorama rules.
func LicenseFor(photographer User, country Country) string {
	if country.OverrideLicense != "" {
		return country.OverrideLicense
	}
	return photographer.License
}

// ProblemReportType classifies a problem report.
type ProblemReportType string

const (
	WrongLocation      ProblemReportType = "WRONG_LOCATION"
	StationActive      ProblemReportType = "STATION_ACTIVE"
	StationInactive    ProblemReportType = "STATION_INACTIVE"
	StationNonexistent ProblemReportType = "STATION_NONEXISTENT"
	WrongPhoto         ProblemReportType = "WRONG_PHOTO"
	PhotoOutdated      ProblemReportType = "PHOTO_OUTDATED"
	WrongName          ProblemReportType = "WRONG_NAME"
	Other              ProblemReportType = "OTHER"
)

var problemReportTypes = map[ProblemReportType]bool{
	WrongLocation: true, StationActive: true, StationInactive: true, StationNonexistent: true,
	WrongPhoto: true, PhotoOutdated: true, WrongName: true, Other: true,
}

// ParseProblemReportType returns the type for s, or false if s is unknown.
func ParseProblemReportType(s string) (ProblemReportType, bool) {
	t := ProblemReportType(strings.ToUpper(strings.TrimSpace(s)))
	return t, problemReportTypes[t]
}

// NeedsPhoto reports whether the report refers to the station's photo.
func (t ProblemReportType) NeedsPhoto() bool {
	return t == WrongPhoto || t == PhotoOutdated
}

// EntryKind tells the three shapes of an inbox entry apart.
type EntryKind int

const (
	// KindProblemReport is a report about an existing station.
	KindProblemReport EntryKind = iota
	// KindStationPhoto is a photo for an existing station.
	KindStationPhoto
	// KindMissingStationPhoto is a photo proposing a new station at its coordinates.
	KindMissingStationPhoto
)

func (k EntryKind) String() string {
	switch k {
	case KindProblemReport:
		return "problem report"
	case KindStationPhoto:
		return "photo"
	case KindMissingStationPhoto:
		return "missing station"
	}
	return fmt.Sprintf("EntryKind(%d)", int(k))
}

// InboxEntry is one submitted photo upload or problem report.
// It is created pending and transitions exactly once to done.
type InboxEntry struct {
	ID                int64             `json:"id"`
	CountryCode       string            `json:"countryCode,omitempty"`
	StationID         string            `json:"stationId,omitempty"`
	Title             string            `json:"title,omitempty"`
	Coordinates       *Coordinates      `json:"coordinates,omitempty"`
	PhotographerID    int64             `json:"photographerId"`
	PhotographerName  string            `json:"photographerNickname,omitempty"`
	PhotographerEmail string            `json:"-"`
	Extension         string            `json:"extension,omitempty"`
	Comment           string            `json:"comment,omitempty"`
	ProblemReportType ProblemReportType `json:"problemReportType,omitempty"`
	Active            *bool             `json:"active,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	Done              bool              `json:"done"`
	RejectReason      *string           `json:"rejectReason,omitempty"`
	Crc32             *uint32           `json:"crc32,omitempty"`
	Notified          bool              `json:"-"`
}

// NewProblemReportEntry builds a pending problem-report entry.
func NewProblemReportEntry(key StationKey, reportType ProblemReportType, comment string, coords *Coordinates, title string, photographerID int64) InboxEntry {
	return InboxEntry{
		CountryCode:       key.Country,
		StationID:         key.ID,
		Title:             title,
		Coordinates:       coords,
		PhotographerID:    photographerID,
		Comment:           comment,
		ProblemReportType: reportType,
		CreatedAt:         time.Now().UTC(),
	}
}

// NewStationPhotoEntry builds a pending upload for an existing station.
func NewStationPhotoEntry(key StationKey, title, extension, comment string, active *bool, photographerID int64) InboxEntry {
	return InboxEntry{
		CountryCode:    key.Country,
		StationID:      key.ID,
		Title:          title,
		PhotographerID: photographerID,
		Extension:      extension,
		Comment:        comment,
		Active:         active,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewMissingStationEntry builds a pending upload proposing a new station.
func NewMissingStationEntry(country, title string, coords Coordinates, extension, comment string, active *bool, photographerID int64) InboxEntry {
	return InboxEntry{
		CountryCode:    country,
		Title:          title,
		Coordinates:    &coords,
		PhotographerID: photographerID,
		Extension:      extension,
		Comment:        comment,
		Active:         active,
		CreatedAt:      time.Now().UTC(),
	}
}

// Kind derives the entry shape from its optional fields.
func (e InboxEntry) Kind() EntryKind {
	switch {
	case e.ProblemReportType != "":
		return KindProblemReport
	case e.StationID != "":
		return KindStationPhoto
	default:
		return KindMissingStationPhoto
	}
}

// IsProblemReport reports whether the entry describes a data problem.
func (e InboxEntry) IsProblemReport() bool {
	return e.ProblemReportType != ""
}

// IsPhotoUpload reports whether the entry carries an uploaded image.
func (e InboxEntry) IsPhotoUpload() bool {
	return !e.IsProblemReport() && e.Extension != ""
}

// StationKey returns the (country, stationId) pair the entry targets.
func (e InboxEntry) StationKey() StationKey {
	return StationKey{Country: e.CountryCode, ID: e.StationID}
}

// Filename is the name of the uploaded file, empty for problem reports.
func (e InboxEntry) Filename() string {
	if e.Extension == "" {
		return ""
	}
	return FilenameFor(e.ID, e.Extension)
}

// IsRejected reports whether the entry was finalized with a reject reason.
func (e InboxEntry) IsRejected() bool {
	return e.Done && e.RejectReason != nil
}

// FilenameFor returns "<id>.<extension>".
func FilenameFor(id int64, extension string) string {
	return fmt.Sprintf("%d.%s", id, extension)
}

// ExtensionForContentType maps an upload content type to a file extension.
// It returns false for unsupported types.
func ExtensionForContentType(contentType string) (string, bool) {
	mime := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "image/jpeg", "image/jpg":
		return "jpg", true
	case "image/png":
		return "png", true
	}
	return "", false
}

// ProblemReport is a user's report about an existing station.
type ProblemReport struct {
	CountryCode string            `json:"countryCode"`
	StationID   string            `json:"stationId"`
	Title       string            `json:"title,omitempty"`
	Type        ProblemReportType `json:"type"`
	Comment     string            `json:"comment"`
	Coordinates *Coordinates      `json:"coordinates,omitempty"`
}

// PhotoUpload carries the parameters of a photo submission.
// Lat and Lon are nil when the client did not send them.
type PhotoUpload struct {
	ClientInfo  string
	Body        io.Reader
	StationID   string
	CountryCode string
	ContentType string
	Title       string
	Lat         *float64
	Lon         *float64
	Comment     string
	Active      *bool
}

// ResponseState is the closed vocabulary of intake and state-query outcomes.
type ResponseState string

const (
	StateReview                 ResponseState = "REVIEW"
	StateConflict               ResponseState = "CONFLICT"
	StateUnauthorized           ResponseState = "UNAUTHORIZED"
	StateNotEnoughData          ResponseState = "NOT_ENOUGH_DATA"
	StateLatLonOutOfRange       ResponseState = "LAT_LON_OUT_OF_RANGE"
	StateUnsupportedContentType ResponseState = "UNSUPPORTED_CONTENT_TYPE"
	StatePhotoTooLarge          ResponseState = "PHOTO_TOO_LARGE"
	StateError                  ResponseState = "ERROR"
	StateAccepted               ResponseState = "ACCEPTED"
	StateRejected               ResponseState = "REJECTED"
	StateUnknown                ResponseState = "UNKNOWN"
)

// InboxResponse is the result of an intake operation.
type InboxResponse struct {
	State    ResponseState `json:"state"`
	Message  string        `json:"message,omitempty"`
	ID       int64         `json:"id,omitempty"`
	Filename string        `json:"filename,omitempty"`
	InboxURL string        `json:"inboxUrl,omitempty"`
	Crc32    *uint32       `json:"crc32,omitempty"`
}

// InboxStateQuery asks for the state of one of the requester's entries,
// either by ID or by the station it targets. The result fields are filled
// in by UserInbox.
type InboxStateQuery struct {
	ID             int64         `json:"id,omitempty"`
	CountryCode    string        `json:"countryCode,omitempty"`
	StationID      string        `json:"stationId,omitempty"`
	Coordinates    *Coordinates  `json:"coordinates,omitempty"`
	State          ResponseState `json:"state"`
	RejectedReason string        `json:"rejectedReason,omitempty"`
	Filename       string        `json:"filename,omitempty"`
	InboxURL       string        `json:"inboxUrl,omitempty"`
	Crc32          *uint32       `json:"crc32,omitempty"`
}

// AdminInboxEntry is a pending entry as shown to administrators.
type AdminInboxEntry struct {
	InboxEntry
	Processed bool   `json:"isProcessed"`
	InboxURL  string `json:"inboxUrl,omitempty"`
	Conflict  bool   `json:"conflict"`
}

// PublicInboxEntry is the anonymous view of a pending photo upload.
type PublicInboxEntry struct {
	CountryCode string      `json:"countryCode,omitempty"`
	StationID   string      `json:"stationId,omitempty"`
	Title       string      `json:"title"`
	Coordinates Coordinates `json:"coordinates"`
}
