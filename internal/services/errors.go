package services

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrProjectClosed = errors.New("project is not accepting applications")
	ErrProjectFull   = errors.New("project has no free seats")
	ErrUnavailable   = errors.New("service unavailable")

	// ErrOrphanedReply is returned by BuildThreads under OrphanError when a
	// reply names a parent missing from the input.
	ErrOrphanedReply = errors.New("reply references a missing parent comment")
	// ErrMalformedComment rejects a comment row missing required fields.
	ErrMalformedComment = errors.New("malformed comment")
)
