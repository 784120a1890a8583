package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedFile marks uploads that cannot be read as CSV at all.
	ErrMalformedFile = errors.New("malformed file")

	// ErrStructural marks files whose header fails the column checks.
	ErrStructural = errors.New("structural error")

	// ErrUnknownKind is returned for import kinds other than transactions and holdings.
	ErrUnknownKind = errors.New("unknown import kind")

	// ErrAccountNotFound is returned when the owning account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEncoding is returned by the import reader on invalid UTF-8.
	ErrEncoding = errors.New("encoding error")

	// ErrUnresolved is returned for identifiers whose security could not be
	// created. The outcome is cached for the rest of the run.
	ErrUnresolved = errors.New("security could not be resolved")
)

// FileError is a fatal, file-level failure. Message is shown to the user as is.
type FileError struct {
	Kind    error // ErrMalformedFile or ErrStructural
	Message string
}

func (e *FileError) Error() string { return e.Message }

func (e *FileError) Unwrap() error { return e.Kind }

func malformed(format string, args ...any) *FileError {
	return &FileError{Kind: ErrMalformedFile, Message: fmt.Sprintf(format, args...)}
}
