package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a write collides with the unique email
// constraint. The database constraint is the source of truth; application
// level existence checks only fail fast.
var ErrDuplicateEmail = errors.New("email already taken")
