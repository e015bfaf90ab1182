package repository

import "errors"

// ErrNotFound is returned when a query matches no rows, or when a guarded
// update touches zero rows.
var ErrNotFound = errors.New("repository: not found")
