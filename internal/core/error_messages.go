package core

// # Error Codes Reference
//
// Technical failures are shown to clients as a short message with a code
// for support reference. The codes are grouped by category:
//
//	DB001 - Duplicate entry           Patterns: "duplicate key", "violates unique"
//	DB002 - Database unavailable      Patterns: "connection refused", "connection reset"
//	DB003 - Database busy             Patterns: "deadlock", "timeout"
//
//	STO001 - Storage busy             ErrStorageBusy
//	STO002 - Photo too large          *PhotoTooLargeError
//	STO003 - Storage unavailable      Patterns: "no space left", "permission denied"
//
//	LCK001 - Entry locked             Patterns: "entry is locked"
//
//	REQ001 - Request cancelled        context.Canceled
//	REQ002 - Request timed out        context.DeadlineExceeded
//
//	RATE001 - Rate limited            Patterns: "rate limit"
//
//	ERR000 - Unknown error, check the logs for the technical error.
//
// Typed errors are matched with errors.Is/As first. Patterns are then
// matched case-insensitively with strings.Contains; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgStorageBusy = UserMessage{
		Message: "Photo storage is busy",
		Action:  "Please wait a moment and try again",
		Code:    "STO001",
	}
	msgPhotoTooLarge = UserMessage{
		Message: "Photo exceeds the maximum upload size",
		Action:  "Reduce the image size and upload again",
		Code:    "STO002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Check your connection and try again",
		Code:    "REQ002",
	}
)

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. More specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "This record already exists",
			Action:  "Reload the inbox before retrying",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "This record already exists",
			Action:  "Reload the inbox before retrying",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB003",
		},
	},
	{
		pattern: "no space left",
		msg: UserMessage{
			Message: "Photo storage is unavailable",
			Action:  "Please try again later or contact support",
			Code:    "STO003",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "Photo storage is unavailable",
			Action:  "Please try again later or contact support",
			Code:    "STO003",
		},
	},
	{
		pattern: "entry is locked",
		msg: UserMessage{
			Message: "Another administrator is working on this entry",
			Action:  "Reload the inbox and try again",
			Code:    "LCK001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. If
// nothing matches, a generic fallback with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var tooLarge *PhotoTooLargeError
	switch {
	case errors.Is(err, ErrStorageBusy):
		return msgStorageBusy
	case errors.As(err, &tooLarge):
		return msgPhotoTooLarge
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates "Message (Code: XXX). Action" for display.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
