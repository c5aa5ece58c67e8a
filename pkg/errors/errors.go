// Package errors defines the error taxonomy shared by the telegram client,
// the fetcher, and the orchestrator. Rate limits are not failures: they are
// a distinct signal carrying the server-issued wait duration.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for retry and reporting decisions.
type Kind string

const (
	KindNetwork        Kind = "network"         // transient transport failure
	KindRateLimit      Kind = "rate_limit"      // server-issued wait
	KindNotMember      Kind = "not_member"      // channel exists but we cannot read it
	KindInvalidChannel Kind = "invalid_channel" // identifier does not resolve
	KindParsing        Kind = "parsing"         // malformed content from the source
	KindStorage        Kind = "storage"         // durable store failure, fatal for the run
	KindUnknown        Kind = "unknown"
)

// Error is a classified error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether an error of the given kind is worth retrying
// with backoff. Rate limits are handled separately (the server tells us how
// long to wait), so they are not "retryable" in the backoff sense.
func IsRetryable(kind Kind) bool {
	return kind == KindNetwork
}

// FloodWaitError is the structured rate-limit signal from the source: the
// client must pause for Wait before repeating the request.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("rate limited by source, wait %s", e.Wait)
}

// AsFloodWait extracts a FloodWaitError from err, if present.
func AsFloodWait(err error) (*FloodWaitError, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw, true
	}
	return nil, false
}
