package core

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference.
//
// # Row Errors (ROW001-ROW099)
//
//	ROW002 - No data: every row in the request is empty
//	         Action: Send at least one row with a value
//	         Patterns: "rows are empty"
//
//	ROW001 - Invalid rows: the row set is not a list of objects
//	         Action: Send a JSON array of objects, one per row
//	         Matches: errors.Is(err, ErrInvalidInput)
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Unknown source: no catalog entry with that key
//	         Patterns: "source not found"
//
//	SRC002 - Query failed: the source query could not be run
//	         Patterns: "source query"
//
// # Database Errors (DB004-DB006)
//
//	DB004 - Connection refused     Patterns: "connection refused"
//	DB005 - Connection reset       Patterns: "connection reset"
//	DB006 - Timeout                Patterns: "timeout"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Body too large       Patterns: "request body too large"
//	FILE002 - Invalid CSV          Patterns: "invalid csv"
//	FILE003 - Encoding error       Patterns: "encoding error"
//	FILE004 - Invalid Parquet      Patterns: "invalid parquet"
//	HTML001 - No table in document Patterns: "no table"
//
// # Load and Request Errors
//
//	LOAD001 - Too many loads       Patterns: "too many concurrent loads"
//	REQ001  - Cancelled            Patterns: "context canceled"
//	REQ002  - Timed out            Patterns: "context deadline exceeded"
//	REQ003  - Bad query string     Patterns: "invalid query string"
//	RATE001 - Rate limited         Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check application logs for the original error.
//
// Patterns are matched case-insensitively using strings.Contains, first match wins.

import (
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

var invalidInputMessage = UserMessage{
	Message: "Rows must be a list of objects",
	Action:  "Send a JSON array of objects, one per row",
	Code:    "ROW001",
}

// errorPatterns is ordered specific before general.
var errorPatterns = []errorPattern{
	{
		pattern: "rows are empty",
		msg: UserMessage{
			Message: "Every row is empty",
			Action:  "Send at least one row with a value",
			Code:    "ROW002",
		},
	},
	{
		pattern: "source not found",
		msg: UserMessage{
			Message: "Source not found",
			Action:  "Check the source key against /api/sources",
			Code:    "SRC001",
		},
	},
	{
		pattern: "source query",
		msg: UserMessage{
			Message: "The source query could not be run",
			Action:  "Check the source definition and database availability",
			Code:    "SRC002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "Request body exceeds the size limit",
			Action:  "Send fewer rows or raise SOURCE_MAX_BODY_BYTES",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "Body is not a valid CSV",
			Action:  "Ensure the file has a header row and consistent quoting",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "Body contains characters that cannot be decoded",
			Action:  "Save the file as UTF-8 or pass ?charset=",
			Code:    "FILE003",
		},
	},
	{
		pattern: "invalid parquet",
		msg: UserMessage{
			Message: "Body is not a readable Parquet file",
			Action:  "Send the raw .parquet file as the request body",
			Code:    "FILE004",
		},
	},
	{
		pattern: "no table",
		msg: UserMessage{
			Message: "No table found in the document",
			Action:  "Check the ?selector= parameter",
			Code:    "HTML001",
		},
	},
	{
		pattern: "too many concurrent loads",
		msg: UserMessage{
			Message: "System is busy loading other sources",
			Action:  "Please wait a moment and try again",
			Code:    "LOAD001",
		},
	},
	{
		pattern: "invalid query string",
		msg: UserMessage{
			Message: "The query string could not be parsed",
			Action:  "URL-encode parameter values, e.g. ';' as %3B",
			Code:    "REQ003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller source or try again later",
			Code:    "REQ002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again later",
			Code:    "DB006",
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

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Text patterns are checked first so ROW002 wins over the generic ROW001;
// any other ErrInvalidInput maps to ROW001.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if errors.Is(err, ErrInvalidInput) {
		return invalidInputMessage
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
