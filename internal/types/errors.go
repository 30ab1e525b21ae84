package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for crawl failure modes.
var (
	ErrTimeout       = errors.New("request timed out")
	ErrMaxRetries    = errors.New("max retries exceeded")
	ErrMaxDepth      = errors.New("max depth exceeded")
	ErrDuplicate     = errors.New("duplicate URL")
	ErrEmptyResponse = errors.New("empty response body")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrCrawlStopped  = errors.New("crawl has been stopped")
	ErrNoFetcher     = errors.New("no fetcher available for request")
)

// Sentinel errors for extraction and reconciliation.
var (
	ErrMissingField       = errors.New("missing field")
	ErrMalformedValue     = errors.New("malformed value")
	ErrStructuralMismatch = errors.New("structural mismatch")
	ErrRecordRejected     = errors.New("record rejected")
	ErrLookupMissing      = errors.New("lookup source missing")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // from Retry-After on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors raised while turning a response body into a document.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FieldError reports a problem with a single field of a record. Err wraps
// one of ErrMissingField, ErrMalformedValue or ErrStructuralMismatch.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("field %s (value=%q): %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// RecordRejectedError is returned when a record cannot be emitted at all.
// It matches both ErrRecordRejected and its cause.
type RecordRejectedError struct {
	Kind   RecordKind
	URL    string
	Reason error
}

func (e *RecordRejectedError) Error() string {
	return fmt.Sprintf("%s record from %s rejected: %v", e.Kind, e.URL, e.Reason)
}

func (e *RecordRejectedError) Unwrap() []error {
	return []error{ErrRecordRejected, e.Reason}
}

// Reject builds a RecordRejectedError.
func Reject(kind RecordKind, url string, reason error) *RecordRejectedError {
	return &RecordRejectedError{Kind: kind, URL: url, Reason: reason}
}

// LookupError reports a lookup list that could not be read.
type LookupError struct {
	Name string
	Path string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s (%s): %v", e.Name, e.Path, e.Err)
}

func (e *LookupError) Unwrap() []error {
	return []error{ErrLookupMissing, e.Err}
}

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the record pipeline.
type PipelineError struct {
	Stage  string
	Record Record
	Err    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
