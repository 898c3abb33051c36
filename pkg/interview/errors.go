package interview

import "errors"

var (
	// ErrSessionActive is returned when the user already has an interview in progress.
	ErrSessionActive = errors.New("interview: session already active")
	ErrTimedOut      = errors.New("interview: timed out waiting for reply")
	ErrCancelled     = errors.New("interview: cancelled by user")
)
