package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
)

// errCritical terminates repeater retries, matched by criticalError.Is
var errCritical = errors.New("critical error")

// criticalError wraps an error to signal repeater to stop retrying
type criticalError struct {
	err error
}

func (e *criticalError) Error() string {
	return e.err.Error()
}

func (e *criticalError) Unwrap() error {
	return e.err
}

func (e *criticalError) Is(target error) bool {
	return target == errCritical //nolint:errorlint // sentinel comparison
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}

// retryOnLock runs fn, repeating it with backoff while it fails on SQLite locks.
// Any other error stops retries and is returned unwrapped.
func retryOnLock(ctx context.Context, fn func() error) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		err := fn()
		if err == nil || isLockError(err) {
			return err // repeater will retry lock errors
		}
		return &criticalError{err: err}
	}, errCritical)

	var ce *criticalError
	if errors.As(err, &ce) {
		return ce.err
	}
	return err
}
