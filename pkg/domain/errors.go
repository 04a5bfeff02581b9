package domain

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the stage of the pipeline an error came from
type ErrorKind string

// error kinds reported by feed and article processing
const (
	KindUnknown         ErrorKind = "unknown"
	KindTransport       ErrorKind = "transport"
	KindMalformedFeed   ErrorKind = "malformed_feed"
	KindClassification  ErrorKind = "classification"
	KindTimestampFormat ErrorKind = "timestamp_format"
	KindPersistence     ErrorKind = "persistence"
)

// ProcessingError is a feed or article level failure. Subject is the feed URL or
// the article title, whatever identifies the failed unit in the log.
type ProcessingError struct {
	Kind    ErrorKind
	Subject string
	Err     error
}

// NewError makes ProcessingError of the given kind
func NewError(kind ErrorKind, subject string, err error) *ProcessingError {
	return &ProcessingError{Kind: kind, Subject: subject, Err: err}
}

func (e *ProcessingError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error for %q: %v", e.Kind, e.Subject, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first ProcessingError in the chain, KindUnknown otherwise
func KindOf(err error) ErrorKind {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
