package core

import (
	"context"
	"io"
	"time"
)

// Lookups return (nil, nil) when nothing matches; a non-nil error always
// means the store itself failed.

// InboxStore persists inbox entries.
type InboxStore interface {
	Insert(ctx context.Context, entry InboxEntry) (int64, error)
	FindByID(ctx context.Context, id int64) (*InboxEntry, error)
	FindPending(ctx context.Context) ([]InboxEntry, error)
	FindPublic(ctx context.Context) ([]PublicInboxEntry, error)
	FindNewestPendingByStationAndPhotographer(ctx context.Context, key StationKey, photographerID int64) (*InboxEntry, error)
	// CountPendingForStation counts pending entries for key, ignoring excludeID (0 excludes nothing).
	CountPendingForStation(ctx context.Context, excludeID int64, key StationKey) (int, error)
	// CountPendingNearby counts pending entries closer than radiusKm to c, ignoring excludeID.
	CountPendingNearby(ctx context.Context, excludeID int64, c Coordinates, radiusKm float64) (int, error)
	CountPending(ctx context.Context) (int, error)
	UpdateCrc32(ctx context.Context, id int64, crc32 uint32) error
	// Reject and Done finalize a pending entry. They return ErrNoPendingEntry
	// when the entry is missing or already done.
	Reject(ctx context.Context, id int64, reason string) error
	Done(ctx context.Context, id int64) error
	FindToNotify(ctx context.Context) ([]InboxEntry, error)
	UpdateNotified(ctx context.Context, ids []int64) error
}

// StationStore persists stations. Lookups return snapshots including photos.
type StationStore interface {
	FindByKey(ctx context.Context, key StationKey) (*Station, error)
	// FindByID resolves a station id without a country; it returns nil when
	// the id is unknown or ambiguous.
	FindByID(ctx context.Context, id string) (*Station, error)
	CountNearby(ctx context.Context, c Coordinates, radiusKm float64) (int, error)
	Insert(ctx context.Context, station Station) error
	UpdateActive(ctx context.Context, key StationKey, active bool) error
	UpdateLocation(ctx context.Context, key StationKey, c Coordinates) error
	ChangeTitle(ctx context.Context, key StationKey, title string) error
	Delete(ctx context.Context, key StationKey) error
	// MaxZ returns the highest numeric suffix of "Z" station ids.
	MaxZ(ctx context.Context) (int, error)
}

// PhotoStore persists imported photos.
type PhotoStore interface {
	Insert(ctx context.Context, photo Photo) (int64, error)
	Update(ctx context.Context, photo Photo) error
	UpdateOutdated(ctx context.Context, key StationKey) error
	Delete(ctx context.Context, key StationKey) error
}

// UserStore resolves photographers.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*User, error)
}

// CountryStore resolves countries by lower-case code.
type CountryStore interface {
	FindByCode(ctx context.Context, code string) (*Country, error)
}

// PhotoStorage holds the uploaded binaries.
type PhotoStorage interface {
	// StoreUpload writes the upload and returns its CRC32. It fails with
	// *PhotoTooLargeError when the body exceeds the configured maximum.
	StoreUpload(ctx context.Context, body io.Reader, filename string) (uint32, error)
	// IsProcessed reports whether the image pipeline produced a processed copy.
	IsProcessed(ctx context.Context, filename string) bool
	UploadFile(filename string) string
	InboxFile(filename string) string
	ProcessedFile(filename string) string
	// ImportPhoto moves the best available copy of the upload into permanent
	// storage under PhotoURLPath(station.Key, entry.Extension).
	ImportPhoto(ctx context.Context, entry InboxEntry, station Station) error
	// UnimportPhoto returns an imported upload to the inbox when its entry
	// could not be finalized. station is the snapshot passed to ImportPhoto;
	// if it had no photo, the imported copy is withdrawn as well.
	UnimportPhoto(ctx context.Context, entry InboxEntry, station Station) error
	// Reject moves the upload to the rejected area.
	Reject(ctx context.Context, entry InboxEntry) error
	// CleanupOldCopies removes done and rejected copies older than maxAge.
	CleanupOldCopies(ctx context.Context, maxAge time.Duration) (int, error)
}

// MonitorMessage is an operator notification with an optional file attachment.
type MonitorMessage struct {
	Text       string
	Attachment string
}

// Monitor delivers operator notifications. Delivery is fire-and-forget.
type Monitor interface {
	SendMessage(ctx context.Context, msg MonitorMessage)
}

// SocialBot announces newly imported photos. Failures never reach the caller.
type SocialBot interface {
	TootNewPhoto(ctx context.Context, station Station, entry InboxEntry)
}

// Mailer sends plain-text mails.
type Mailer interface {
	Send(ctx context.Context, to User, subject, body string) error
}

// EntryLocker serializes command application per inbox entry.
// The returned unlock function must be called exactly once.
type EntryLocker interface {
	Lock(ctx context.Context, id int64) (unlock func(), err error)
}
