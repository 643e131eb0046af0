// Package errors defines ReedBase's error taxonomy as typed values rather
// than opaque strings, so callers can switch on kind with errors.As instead
// of matching error text.
package errors

import "fmt"

// Kind classifies an error into one of the taxonomy buckets from the
// engine's propagation policy. Corruption and IO are further distinguished
// from the caller-recoverable kinds because they carry different
// propagation semantics (fatal-to-table vs fatal-to-request).
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindAlreadyExist Kind = "already_exists"
	KindConflict     Kind = "conflict"
	KindValidation   Kind = "validation"
	KindCorruption   Kind = "corruption"
	KindIO           Kind = "io"
	KindConcurrency  Kind = "concurrency"
	KindUnsupported  Kind = "unsupported"
	KindParse        Kind = "parse"
)

// NotFoundError reports a missing table, version, frame, index, row, or
// registry entry.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

func (e *NotFoundError) Kind() Kind { return KindNotFound }

func NotFound(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// AlreadyExistsError reports a collision creating a table/frame/index.
type AlreadyExistsError struct {
	Resource string
	Key      string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Resource, e.Key)
}

func (e *AlreadyExistsError) Kind() Kind { return KindAlreadyExist }

func AlreadyExists(resource, key string) error {
	return &AlreadyExistsError{Resource: resource, Key: key}
}

// ConflictError reports a merge conflict on a single primary key, carrying
// both sides' proposed rows so the caller can resolve and resubmit.
type ConflictError struct {
	Table string
	Key   string
	Self  map[string]string
	Other map[string]string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s[%s]: self=%v other=%v", e.Table, e.Key, e.Self, e.Other)
}

func (e *ConflictError) Kind() Kind { return KindConflict }

// ValidationError reports a schema violation, malformed key, forbidden
// delimiter, or wrong column count.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("validation: %s", e.Reason) }

func (e *ValidationError) Kind() Kind { return KindValidation }

func Validation(reason string) error {
	return &ValidationError{Reason: reason}
}

func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// CorruptionError reports a hash mismatch, bad page CRC, a delta that fails
// to apply, or a frame snapshot referencing a missing version. Corruption is
// fatal for the affected table but not the process.
type CorruptionError struct {
	Table  string
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corruption in %s: %s", e.Table, e.Reason)
}

func (e *CorruptionError) Kind() Kind { return KindCorruption }

func Corruption(table, reason string) error {
	return &CorruptionError{Table: table, Reason: reason}
}

// IOError wraps an underlying filesystem failure.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("io: %s: %v", e.Op, e.Err) }

func (e *IOError) Kind() Kind { return KindIO }

func (e *IOError) Unwrap() error { return e.Err }

func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}

// ConcurrencyError reports a poisoned lock or recovery-in-progress state.
type ConcurrencyError struct {
	Reason string
}

func (e *ConcurrencyError) Error() string { return fmt.Sprintf("concurrency: %s", e.Reason) }

func (e *ConcurrencyError) Kind() Kind { return KindConcurrency }

func Concurrency(reason string) error {
	return &ConcurrencyError{Reason: reason}
}

// UnsupportedError reports an operation a backend cannot fulfil, e.g. a
// range query against a hash-only index.
type UnsupportedError struct {
	Feature string
}

func (e *UnsupportedError) Error() string { return fmt.Sprintf("unsupported: %s", e.Feature) }

func (e *UnsupportedError) Kind() Kind { return KindUnsupported }

func Unsupported(feature string) error {
	return &UnsupportedError{Feature: feature}
}

// ParseError reports a SQL syntax error, version-log parse error, or bad
// page format, with the offending token position when known.
type ParseError struct {
	Input  string
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Reason)
	}
	return fmt.Sprintf("parse error: %s", e.Reason)
}

func (e *ParseError) Kind() Kind { return KindParse }

func Parse(input string, pos int, reason string) error {
	return &ParseError{Input: input, Pos: pos, Reason: reason}
}

// KindOf extracts the Kind from any ReedBase typed error, returning "" for
// errors outside the taxonomy.
func KindOf(err error) Kind {
	type kinder interface{ Kind() Kind }
	if k, ok := err.(kinder); ok {
		return k.Kind()
	}
	return ""
}
