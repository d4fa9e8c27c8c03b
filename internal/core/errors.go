package core

import (
	"errors"
	"fmt"
)

// ErrNoPendingEntry is returned by stores when an entry is missing or already done.
var ErrNoPendingEntry = errors.New("no pending inbox entry")

// BadRequestError is the single failure kind of admin commands. Reason is
// safe to show to the administrator.
type BadRequestError struct {
	Reason string
	cause  error
}

func (e *BadRequestError) Error() string {
	return e.Reason
}

func (e *BadRequestError) Unwrap() error {
	return e.cause
}

func badRequest(format string, args ...any) error {
	return &BadRequestError{Reason: fmt.Sprintf(format, args...)}
}

// IsBadRequest reports whether err, or an error it wraps, is a BadRequestError.
func IsBadRequest(err error) bool {
	var br *BadRequestError
	return errors.As(err, &br)
}

// Reasons shared between command handlers and the resolver.
const (
	reasonNoPendingEntry  = "No pending inbox entry found"
	reasonStationNotFound = "Station not found"
	reasonCountryNotFound = "Country not found"
)

func errNoPendingEntry() error {
	return &BadRequestError{Reason: reasonNoPendingEntry, cause: ErrNoPendingEntry}
}

// PhotoTooLargeError is returned by PhotoStorage.StoreUpload when the body
// exceeds MaxSize bytes.
type PhotoTooLargeError struct {
	MaxSize int64
}

func (e *PhotoTooLargeError) Error() string {
	return fmt.Sprintf("photo too large, max %d bytes allowed", e.MaxSize)
}
