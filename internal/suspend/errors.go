// Package suspend persists and restores session state. The envelope is a
// gzip-compressed JSON document with an integer schema version; six
// revisions remain decodable through a version-dispatching decoder table.
package suspend

import (
	"errors"
	"fmt"
)

// ErrResume is the base of the resume error taxonomy. Every failure
// returned by Resume and Peek wraps it, so callers can match the whole
// family with errors.Is.
var ErrResume = errors.New("session resume failed")

// CorruptedSessionError reports a malformed or self-inconsistent envelope.
// Always fatal: no partial session is ever returned. Field names the
// offending location so an operator can decide to discard or repair.
type CorruptedSessionError struct {
	Field  string
	Reason string
}

func (e *CorruptedSessionError) Error() string {
	return fmt.Sprintf("corrupted session: %s: %s", e.Field, e.Reason)
}

func (e *CorruptedSessionError) Unwrap() error { return ErrResume }

// IncompatibleSessionError reports a well-formed envelope in a version this
// build does not support.
type IncompatibleSessionError struct {
	Version int
}

func (e *IncompatibleSessionError) Error() string {
	return fmt.Sprintf("incompatible session: unsupported version %d", e.Version)
}

func (e *IncompatibleSessionError) Unwrap() error { return ErrResume }

// IncompatibleJobError reports checksum drift: the persisted definition of
// a job no longer matches the live catalog. Recoverable only via
// FlagIgnoreJobChecksum.
type IncompatibleJobError struct {
	JobID string
}

func (e *IncompatibleJobError) Error() string {
	return fmt.Sprintf("incompatible job: checksum mismatch for %q", e.JobID)
}

func (e *IncompatibleJobError) Unwrap() error { return ErrResume }

// BrokenReferenceError reports a disk-backed IO log whose file is missing.
type BrokenReferenceError struct {
	Filename string
}

func (e *BrokenReferenceError) Error() string {
	return fmt.Sprintf("broken external reference: missing io log %q", e.Filename)
}

func (e *BrokenReferenceError) Unwrap() error { return ErrResume }

// corruptedf builds a CorruptedSessionError with a formatted reason.
func corruptedf(field, format string, args ...any) error {
	return &CorruptedSessionError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
