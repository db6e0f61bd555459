package storage

import "errors"

// ErrNotFound is returned by lookups for rows that do not exist, regardless
// of backing implementation.
var ErrNotFound = errors.New("record not found")
