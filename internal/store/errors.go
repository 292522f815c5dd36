package store

import "errors"

// ErrNotFound indicates a missing resource lookup.
var ErrNotFound = errors.New("record not found")
