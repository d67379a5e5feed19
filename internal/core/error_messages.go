package core

// error_messages.go maps technical errors to user-facing messages.
//
// Each message carries a short code users can quote when asking for help:
//
//	DS001   - Missing discriminator column (the one fatal load error)
//	DS002   - No dataset loaded yet
//	ENT001  - Unknown entity tab
//	FILE001 - File too large
//	FILE002 - Invalid CSV
//	FILE003 - Unsupported or broken encoding
//	FILE004 - No file provided
//	FILE005 - Empty file
//	UPL002  - Too many concurrent uploads
//	UPL004  - Request cancelled
//	UPL005  - Request timed out
//	RATE001 - Rate limited
//	ERR000  - Anything else; check the server log for the original error
//
// Sentinel errors are matched with errors.Is first. Errors from outside this
// package (csv parse errors, http.MaxBytesReader) fall back to case-insensitive
// substring patterns; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

var (
	msgMissingDiscriminator = UserMessage{
		Message: "The file has no row_type column",
		Action:  "Export the dashboard data again and make sure the row_type column is included",
		Code:    "DS001",
	}
	msgNoDataset = UserMessage{
		Message: "No dataset is loaded",
		Action:  "Upload a dashboard CSV export to get started",
		Code:    "DS002",
	}
	msgUnknownEntity = UserMessage{
		Message: "Unknown tab",
		Action:  "Choose one of users, projects, registrations or preprints",
		Code:    "ENT001",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Ask an administrator to raise UPLOAD_MAX_FILE_SIZE or trim the export",
		Code:    "FILE001",
	}
	msgInvalidCSV = UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure the file is comma-separated with a header row",
		Code:    "FILE002",
	}
	msgEncoding = UserMessage{
		Message: "File encoding is not supported",
		Action:  "Save the file as UTF-8 and upload it again",
		Code:    "FILE003",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file to upload",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a CSV file with a header and data rows",
		Code:    "FILE005",
	}
	msgTooManyUploads = UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL005",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

// sentinelMessages is checked with errors.Is before any pattern matching.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrMissingDiscriminatorColumn, msgMissingDiscriminator},
	{ErrNoDataset, msgNoDataset},
	{ErrUnknownEntity, msgUnknownEntity},
	{ErrFileTooLarge, msgFileTooLarge},
	{ErrNoFile, msgNoFile},
	{ErrEmptyFile, msgEmptyFile},
	{ErrUnsupportedEncoding, msgEncoding},
	{ErrTooManyUploads, msgTooManyUploads},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that do not wrap one of our sentinels.
var errorPatterns = []errorPattern{
	{pattern: "request body too large", msg: msgFileTooLarge},
	{pattern: "file too large", msg: msgFileTooLarge},
	{pattern: "parse error on line", msg: msgInvalidCSV},
	{pattern: "wrong number of fields", msg: msgInvalidCSV},
	{pattern: "bare \" in non-quoted-field", msg: msgInvalidCSV},
	{pattern: "extraneous or missing \" in quoted-field", msg: msgInvalidCSV},
	{pattern: "no such file", msg: msgNoFile},
	{pattern: "rate limit", msg: msgRateLimited},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns the ERR000 fallback when nothing matches and a zero value for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
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

// UserError pairs a technical error with its user-facing message.
// Error() returns the user message; Unwrap exposes the original for logging.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
