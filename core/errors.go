package core

import "errors"

var (
	// ErrNotFound is returned when a document or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable is returned when the backing store cannot be
	// reached. It is never swallowed by the stores; callers decide whether
	// to retry.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrEmailTaken is returned on signup with an already registered email.
	ErrEmailTaken = errors.New("email already registered")
)
