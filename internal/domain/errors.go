package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidTask         = errors.New("invalid task message")
	ErrInvalidTransition   = errors.New("invalid job status transition")
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrMissingReference rejects video generation without a first-frame image.
	ErrMissingReference = errors.New("no reference image available: generate an image for this shot first")
)
