// Package store holds the sentinels every persistence implementation
// reports, so callers can test for them without importing an adapter.
package store

import "errors"

// ErrNotFound is wrapped by every store lookup that matches no row.
var ErrNotFound = errors.New("not found")
