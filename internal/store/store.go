// Package store holds key/value backends for the forecast cache.
package store

import "errors"

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("store: key not found")
	// ErrUnavailable wraps any backend I/O failure.
	ErrUnavailable = errors.New("store: unavailable")
	// ErrQuotaExceeded is returned when a write would grow the store past its limit.
	ErrQuotaExceeded = errors.New("store: quota exceeded")
)
