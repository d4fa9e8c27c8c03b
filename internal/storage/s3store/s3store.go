// Package s3store implements core.PhotoStorage on an S3 bucket, using the
// same inbox/photos key layout as the file backend below an optional prefix.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// s3API is the subset of the S3 client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store keeps uploads and photos in one bucket.
type Store struct {
	client  s3API
	bucket  string
	prefix  string
	maxSize int64
}

var _ core.PhotoStorage = (*Store)(nil)

// New creates a store using the default AWS credential chain.
func New(ctx context.Context, bucket, region, prefix string, maxSize int64) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newStore(s3.NewFromConfig(cfg), bucket, prefix, maxSize), nil
}

func newStore(client s3API, bucket, prefix string, maxSize int64) *Store {
	return &Store{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		maxSize: maxSize,
	}
}

func (s *Store) key(parts ...string) string {
	return path.Join(append([]string{s.prefix}, parts...)...)
}

func (s *Store) uploadKey(filename string) string    { return s.key("inbox", filename) }
func (s *Store) toProcessKey(filename string) string { return s.key("inbox", "toprocess", filename) }
func (s *Store) processedKey(filename string) string { return s.key("inbox", "processed", filename) }
func (s *Store) doneKey(filename string) string      { return s.key("inbox", "done", filename) }
func (s *Store) rejectedKey(filename string) string  { return s.key("inbox", "rejected", filename) }

func (s *Store) url(key string) string {
	return "s3://" + s.bucket + "/" + key
}

func (s *Store) StoreUpload(ctx context.Context, body io.Reader, filename string) (uint32, error) {
	if body == nil {
		return 0, errors.New("store upload: empty body")
	}
	data, err := io.ReadAll(io.LimitReader(body, s.maxSize+1))
	if err != nil {
		return 0, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return 0, &core.PhotoTooLargeError{MaxSize: s.maxSize}
	}

	for _, key := range []string{s.uploadKey(filename), s.toProcessKey(filename)} {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return 0, fmt.Errorf("put %s: %w", key, err)
		}
	}
	slog.Info("upload written", "key", s.uploadKey(filename), "bytes", len(data))
	return crc32.ChecksumIEEE(data), nil
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, err
}

func (s *Store) IsProcessed(ctx context.Context, filename string) bool {
	if filename == "" {
		return false
	}
	ok, err := s.exists(ctx, s.processedKey(filename))
	if err != nil {
		slog.Warn("checking processed copy failed", "filename", filename, "error", err)
	}
	return ok
}

func (s *Store) UploadFile(filename string) string    { return s.url(s.uploadKey(filename)) }
func (s *Store) InboxFile(filename string) string     { return s.url(s.uploadKey(filename)) }
func (s *Store) ProcessedFile(filename string) string { return s.url(s.processedKey(filename)) }

func (s *Store) copy(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + src),
		Key:        aws.String(dst),
	})
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, key string) {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		slog.Warn("unable to delete object", "key", key, "error", err)
	}
}

func (s *Store) ImportPhoto(ctx context.Context, entry core.InboxEntry, station core.Station) error {
	filename := entry.Filename()
	destination := s.key("photos", station.Key.Country, station.Key.ID+"."+entry.Extension)

	processed, err := s.exists(ctx, s.processedKey(filename))
	if err != nil {
		return fmt.Errorf("check processed copy: %w", err)
	}
	// A previous attempt may already have moved the original to done.
	inInbox, err := s.exists(ctx, s.uploadKey(filename))
	if err != nil {
		return fmt.Errorf("check upload: %w", err)
	}
	original := s.uploadKey(filename)
	if !inInbox {
		original = s.doneKey(filename)
	}

	source := original
	if processed {
		source = s.processedKey(filename)
	}
	if err := s.copy(ctx, source, destination); err != nil {
		return err
	}
	if processed {
		s.delete(ctx, source)
	}

	if inInbox {
		if err := s.copy(ctx, original, s.doneKey(filename)); err != nil {
			slog.Warn("could not move original to done", "filename", filename, "error", err)
		} else {
			s.delete(ctx, original)
		}
	}
	s.delete(ctx, s.toProcessKey(filename))
	return nil
}

// UnimportPhoto moves the original back to the inbox and, when station had
// no photo before, parks the imported object as the processed copy.
func (s *Store) UnimportPhoto(ctx context.Context, entry core.InboxEntry, station core.Station) error {
	filename := entry.Filename()
	if err := s.copy(ctx, s.doneKey(filename), s.uploadKey(filename)); err != nil {
		return err
	}
	s.delete(ctx, s.doneKey(filename))
	if station.HasPhoto() {
		return nil
	}
	destination := s.key("photos", station.Key.Country, station.Key.ID+"."+entry.Extension)
	if err := s.copy(ctx, destination, s.processedKey(filename)); err != nil {
		return err
	}
	s.delete(ctx, destination)
	return nil
}

func (s *Store) Reject(ctx context.Context, entry core.InboxEntry) error {
	filename := entry.Filename()
	if err := s.copy(ctx, s.uploadKey(filename), s.rejectedKey(filename)); err != nil {
		return err
	}
	s.delete(ctx, s.uploadKey(filename))
	s.delete(ctx, s.toProcessKey(filename))
	s.delete(ctx, s.processedKey(filename))
	return nil
}

func (s *Store) CleanupOldCopies(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, dir := range []string{s.key("inbox", "done") + "/", s.key("inbox", "rejected") + "/"} {
		pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(dir),
		})
		for pages.HasMorePages() {
			page, err := pages.NextPage(ctx)
			if err != nil {
				return removed, fmt.Errorf("list %s: %w", dir, err)
			}
			for _, obj := range page.Contents {
				if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
					continue
				}
				s.delete(ctx, aws.ToString(obj.Key))
				removed++
			}
		}
	}
	return removed, nil
}
