package core

// error_messages.go maps technical errors to user messages with codes.
//
// User-facing errors carry a code users can quote to support. Codes are
// grouped by category:
//
//	DB001-DB007     database constraints and connectivity
//	VAL001-VAL006   row and header validation
//	SEC001-SEC002   security resolution
//	FILE001-FILE005 upload handling and parsing
//	IMP001-IMP005   import lifecycle (busy, account, kind, cancellation)
//	RATE001         request throttling
//	AUTH001         API key checks
//	ERR000          fallback when nothing matches
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.
//
// When a user reports ERR000, check the application logs for the original
// technical error.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database constraints
	{"duplicate key", UserMessage{"A record with this ID already exists", "Check the file for rows imported twice", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your CSV", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review your data for duplicate key values", "DB002"}},
	{"foreign key", UserMessage{"Referenced record does not exist", "Make sure the account and securities exist", "DB003"}},

	// Database connectivity
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try importing a smaller file or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{"database is locked", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// Validation
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY or DD/MM/YYYY", "VAL001"}},
	{"invalid numeric", UserMessage{"Invalid number format detected", "Use plain decimals; only , and $ are stripped", "VAL002"}},
	{"invalid currency", UserMessage{"Unsupported currency code", "Use a 3-letter code from the supported formats list", "VAL003"}},
	{"missing required column", UserMessage{"Required column is missing from CSV", "Download the template and compare the header row", "VAL004"}},
	{"duplicate columns", UserMessage{"The header repeats a column", "Remove or rename the duplicate columns", "VAL005"}},
	{"invalid transaction type", UserMessage{"Transaction type is not in the allowed list", "Check the allowed transaction types", "VAL006"}},

	// Security resolution
	{"could not be resolved", UserMessage{"A security could not be identified", "Check the symbol or add the security manually", "SEC001"}},
	{"failed to create security", UserMessage{"A security could not be created", "Check the symbol or add the security manually", "SEC002"}},

	// Files
	{"file too large", UserMessage{"File exceeds the maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated", "FILE002"}},
	{"encoding error", UserMessage{"File contains invalid characters", "Save the file as UTF-8", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a CSV file to import", "FILE004"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Please upload a CSV file with data rows", "FILE005"}},

	// Import lifecycle
	{"too many concurrent imports", UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "IMP001"}},
	{"account not found", UserMessage{"Account not found", "Check the account ID", "IMP002"}},
	{"unknown import kind", UserMessage{"Unknown import type", "Use transactions or holdings", "IMP003"}},
	{"context canceled", UserMessage{"Import was cancelled", "Please try again", "IMP004"}},
	{"context deadline exceeded", UserMessage{"Import timed out", "Try importing a smaller file", "IMP005"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
	{"api key", UserMessage{"Missing or invalid API key", "Send a valid key in the X-API-Key header", "AUTH001"}},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
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
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.Message }

func (e *UserError) Unwrap() error { return e.Technical }

// NewUserError maps err, or returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
