package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateKey indicates an insert violated a uniqueness constraint on
	// the primary record (e.g. username).
	ErrDuplicateKey = errors.New("repository: duplicate key")
	// ErrAlreadyLinked indicates the (provider, external_id) pair is already
	// linked to a user.
	ErrAlreadyLinked = errors.New("repository: external identity already linked")
)
