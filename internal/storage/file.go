// Package storage implements core.PhotoStorage on the local file system.
//
// Layout below the work directory:
//
//	inbox/             uploaded originals, named <entry id>.<ext>
//	inbox/toprocess/   copies handed to the external image pipeline
//	inbox/processed/   pipeline output, preferred on import
//	inbox/done/        originals of imported uploads
//	inbox/rejected/    originals of rejected uploads
//	photos/<country>/  imported photos, named <station id>.<ext>
package storage

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// DefaultMaxSize is the largest accepted upload in bytes.
const DefaultMaxSize int64 = 20_000_000

// FileStorage keeps uploads and photos below a work directory.
type FileStorage struct {
	photosDir    string
	inboxDir     string
	toProcessDir string
	processedDir string
	doneDir      string
	rejectedDir  string
	maxSize      int64
}

var _ core.PhotoStorage = (*FileStorage)(nil)

// NewFileStorage creates the directory layout below workDir.
func NewFileStorage(workDir string, maxSize int64) (*FileStorage, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	inbox := filepath.Join(workDir, "inbox")
	s := &FileStorage{
		photosDir:    filepath.Join(workDir, "photos"),
		inboxDir:     inbox,
		toProcessDir: filepath.Join(inbox, "toprocess"),
		processedDir: filepath.Join(inbox, "processed"),
		doneDir:      filepath.Join(inbox, "done"),
		rejectedDir:  filepath.Join(inbox, "rejected"),
		maxSize:      maxSize,
	}
	for _, dir := range []string{s.photosDir, s.toProcessDir, s.processedDir, s.doneDir, s.rejectedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create work directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// StoreUpload writes body to the inbox and returns its CRC32. The file is
// written under a temporary name and renamed once complete, then copied to
// the pipeline's toprocess directory.
func (s *FileStorage) StoreUpload(ctx context.Context, body io.Reader, filename string) (uint32, error) {
	if body == nil {
		return 0, errors.New("store upload: empty body")
	}
	target := s.UploadFile(filename)
	tmp := filepath.Join(s.inboxDir, "."+uuid.NewString()+".part")

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}

	hash := crc32.NewIEEE()
	n, copyErr := io.Copy(io.MultiWriter(f, hash), io.LimitReader(body, s.maxSize+1))
	closeErr := f.Close()
	if copyErr == nil && n > s.maxSize {
		copyErr = &core.PhotoTooLargeError{MaxSize: s.maxSize}
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil {
		copyErr = ctx.Err()
	}
	if copyErr != nil {
		os.Remove(tmp)
		return 0, copyErr
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("finalize upload file: %w", err)
	}
	if err := copyFile(target, filepath.Join(s.toProcessDir, filename)); err != nil {
		return 0, fmt.Errorf("copy upload for processing: %w", err)
	}

	slog.Info("upload written", "file", target, "bytes", n)
	return hash.Sum32(), nil
}

// IsProcessed reports whether the pipeline delivered a processed copy.
func (s *FileStorage) IsProcessed(_ context.Context, filename string) bool {
	if filename == "" {
		return false
	}
	_, err := os.Stat(s.ProcessedFile(filename))
	return err == nil
}

func (s *FileStorage) UploadFile(filename string) string {
	return filepath.Join(s.inboxDir, filename)
}

func (s *FileStorage) InboxFile(filename string) string {
	return filepath.Join(s.inboxDir, sanitizeFilename(filename))
}

func (s *FileStorage) ProcessedFile(filename string) string {
	return filepath.Join(s.processedDir, sanitizeFilename(filename))
}

// PhotoFile is the permanent location of an imported photo.
func (s *FileStorage) PhotoFile(country, filename string) string {
	return filepath.Join(s.photosDir, sanitizeFilename(country), sanitizeFilename(filename))
}

// ImportPhoto moves the processed copy, or copies the original, to the
// photos directory and then retires the original to done.
func (s *FileStorage) ImportPhoto(_ context.Context, entry core.InboxEntry, station core.Station) error {
	filename := entry.Filename()
	upload := s.UploadFile(filename)
	processed := s.ProcessedFile(filename)
	destination := s.PhotoFile(station.Key.Country, station.Key.ID+"."+entry.Extension)

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return fmt.Errorf("create photo directory: %w", err)
	}
	// A previous attempt may already have moved the original to done.
	original := upload
	if _, err := os.Stat(upload); errors.Is(err, fs.ErrNotExist) {
		original = filepath.Join(s.doneDir, filename)
	}

	if _, err := os.Stat(processed); err == nil {
		if err := os.Rename(processed, destination); err != nil {
			return fmt.Errorf("move processed photo: %w", err)
		}
	} else if err := copyFile(original, destination); err != nil {
		return fmt.Errorf("copy uploaded photo: %w", err)
	}

	if original == upload {
		if err := os.Rename(upload, filepath.Join(s.doneDir, filename)); err != nil {
			slog.Warn("could not move original to done", "file", upload, "error", err)
		}
	}
	removeIfExists(filepath.Join(s.toProcessDir, filename))
	return nil
}

// UnimportPhoto moves the original back from done to the inbox. If station
// had no photo before the import, the imported file is moved to processed so
// a retry publishes the same image.
func (s *FileStorage) UnimportPhoto(_ context.Context, entry core.InboxEntry, station core.Station) error {
	filename := entry.Filename()
	if err := os.Rename(filepath.Join(s.doneDir, filename), s.UploadFile(filename)); err != nil {
		return fmt.Errorf("move original back to inbox: %w", err)
	}
	if station.HasPhoto() {
		return nil
	}
	destination := s.PhotoFile(station.Key.Country, station.Key.ID+"."+entry.Extension)
	if err := os.Rename(destination, s.ProcessedFile(filename)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("withdraw imported photo: %w", err)
	}
	return nil
}

// Reject moves the original to rejected and drops the pipeline copies.
func (s *FileStorage) Reject(_ context.Context, entry core.InboxEntry) error {
	filename := entry.Filename()
	if err := os.Rename(s.UploadFile(filename), filepath.Join(s.rejectedDir, filename)); err != nil {
		return fmt.Errorf("move upload to rejected: %w", err)
	}
	removeIfExists(filepath.Join(s.toProcessDir, filename))
	removeIfExists(s.ProcessedFile(filename))
	return nil
}

// CleanupOldCopies deletes files in done and rejected last modified before
// now-maxAge and returns how many were removed.
func (s *FileStorage) CleanupOldCopies(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, dir := range []string{s.doneDir, s.rejectedDir} {
		n, err := cleanupDir(ctx, dir, cutoff)
		removed += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}

func cleanupDir(ctx context.Context, dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", dir, err)
	}
	removed := 0
	for _, de := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, de.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("unable to delete old copy", "file", path, "error", err)
			continue
		}
		slog.Info("deleted old copy", "file", path)
		removed++
	}
	return removed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("unable to delete file", "file", path, "error", err)
	}
}

var filenameReplacer = strings.NewReplacer(
	" ", "_", "/", "_", ":", "_", `"`, "_", "|", "_",
	"*", "_", "?", "_", "<", "_", ">", "_", `\`, "_",
)

func sanitizeFilename(name string) string {
	return filenameReplacer.Replace(name)
}
