package domain

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")

	// ErrNoRecipients is returned when a campaign would have no subscribed recipients.
	ErrNoRecipients = errors.New("no subscribed recipients")
	// ErrPostAlreadySent is returned when the post's newsletter marker is already set.
	ErrPostAlreadySent = errors.New("newsletter already sent for post")
)
