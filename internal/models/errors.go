package models

import "errors"

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the authorizing employee does not own the record.
	ErrForbidden = errors.New("forbidden")

	// ErrNotDraft is returned when deleting a request whose revisions have left draft.
	ErrNotDraft = errors.New("request has non-draft revisions")
)
