package core

// error_messages.go maps run errors to user-facing messages with codes for
// support reference.
//
// Codes:
//
//	FMT001  A required field is missing from a line
//	FMT002  A value could not be converted to its declared type
//	VAL001  A value was rejected by a validator
//	CTX001  A loader needs a record no earlier loader produced
//	FILE001 The file could not be opened or read
//	FILE002 The file is not valid delimited text
//	FILE003 The file does not match its declared encoding
//	DB001   Unique constraint violation
//	DB002   Foreign key violation
//	DB003   Not-null violation
//	DB004   Connection failure
//	DB005   Any other store error
//	UPL002  Every run slot is busy
//	UPL004  Cancelled
//	UPL005  Timed out
//	LDR001  Unknown loader
//	HOOK001 A run hook returned an error
//	ERR000  Anything else
//
// Store errors are classified by Postgres SQLSTATE when the adapter surfaces
// a *pgconn.PgError, and by message pattern otherwise.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
	Line    int    `json:"line,omitempty"`
	Field   string `json:"field,omitempty"`
}

var (
	msgFieldMissing = UserMessage{
		Message: "A required field is missing",
		Action:  "Check that every line has all required columns",
		Code:    "FMT001",
	}
	msgBadValue = UserMessage{
		Message: "A value has the wrong format",
		Action:  "Fix the value so it matches the column's type",
		Code:    "FMT002",
	}
	msgValidation = UserMessage{
		Message: "A value was rejected by validation",
		Action:  "Correct the value and load the file again",
		Code:    "VAL001",
	}
	msgMissingContext = UserMessage{
		Message: "A loader ran before the record it depends on",
		Action:  "Register loaders so that producers come before consumers",
		Code:    "CTX001",
	}
	msgFileOpen = UserMessage{
		Message: "The file could not be opened or read",
		Action:  "Check the path and file permissions",
		Code:    "FILE001",
	}
	msgInvalidCSV = UserMessage{
		Message: "File is not valid delimited text",
		Action:  "Check quoting and the configured delimiter",
		Code:    "FILE002",
	}
	msgEncoding = UserMessage{
		Message: "File contains characters invalid for its encoding",
		Action:  "Save the file as UTF-8 or declare its actual encoding",
		Code:    "FILE003",
	}
	msgUnique = UserMessage{
		Message: "This value must be unique but already exists",
		Action:  "Add the column to the loader's unique attributes or remove the duplicate",
		Code:    "DB001",
	}
	msgForeignKey = UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Ensure parent records are loaded first",
		Code:    "DB002",
	}
	msgNotNull = UserMessage{
		Message: "A column that cannot be empty received no value",
		Action:  "Provide the value or make the field required",
		Code:    "DB003",
	}
	msgConnection = UserMessage{
		Message: "Unable to reach the database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}
	msgStore = UserMessage{
		Message: "The record could not be saved",
		Action:  "Check the logs for the database error",
		Code:    "DB005",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other loads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgCancelled = UserMessage{
		Message: "Load was cancelled",
		Action:  "Start a new load when ready",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Load timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "UPL005",
	}
	msgHook = UserMessage{
		Message: "The load was stopped by a processing step",
		Action:  "Check the server logs for the step's error",
		Code:    "HOOK001",
	}
	msgUnknownLoader = UserMessage{
		Message: "No loader is registered under this name",
		Action:  "List the available loaders and pick one of them",
		Code:    "LDR001",
	}
)

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// storePatterns classifies store errors that are not *pgconn.PgError.
// First match wins.
var storePatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"duplicate key", msgUnique},
	{"unique constraint", msgUnique},
	{"foreign key", msgForeignKey},
	{"not-null", msgNotNull},
	{"connection refused", msgConnection},
	{"connection reset", msgConnection},
}

// MapError converts err to a user-friendly message. The line and field are
// filled in when err carries them.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	msg := classify(err)

	var le *LineError
	if errors.As(err, &le) {
		msg.Line = le.Line
	}
	var dfe DataFormatError
	var ve ValidationError
	switch {
	case errors.As(err, &ve):
		msg.Field = ve.Field
	case errors.As(err, &dfe):
		msg.Field = dfe.Field
	}
	return msg
}

func classify(err error) UserMessage {
	switch {
	case errors.Is(err, ErrUnknownLoader):
		return msgUnknownLoader
	case errors.Is(err, ErrTooManyRuns):
		return msgBusy
	}

	switch KindOf(err) {
	case KindValidation:
		return msgValidation
	case KindDataFormat:
		if errors.Is(err, ErrFieldMissing) {
			return msgFieldMissing
		}
		return msgBadValue
	case KindMissingContext:
		return msgMissingContext
	case KindHook:
		return msgHook
	case KindEncoding:
		return msgEncoding
	case KindCancelled:
		if errors.Is(err, context.DeadlineExceeded) {
			return msgTimeout
		}
		return msgCancelled
	case KindFile:
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return msgInvalidCSV
		}
		return msgFileOpen
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return msgUnique
		case "23503":
			return msgForeignKey
		case "23502":
			return msgNotNull
		}
		return msgStore
	}

	errStr := strings.ToLower(err.Error())
	for _, sp := range storePatterns {
		if strings.Contains(errStr, sp.pattern) {
			return sp.msg
		}
	}

	if KindOf(err) == KindStore {
		return msgStore
	}
	return defaultMessage
}

// FormatUserError returns a single-line message suitable for display.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	var b strings.Builder
	if msg.Line > 0 {
		fmt.Fprintf(&b, "Line %d: ", msg.Line)
	}
	b.WriteString(msg.Message)
	if msg.Field != "" {
		fmt.Fprintf(&b, " (%s)", msg.Field)
	}
	fmt.Fprintf(&b, " (Code: %s). %s", msg.Code, msg.Action)
	return b.String()
}
