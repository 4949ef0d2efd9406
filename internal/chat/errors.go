package chat

import "errors"

var (
	ErrRateLimited     = errors.New("daily request limit reached")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message text or image required")
	ErrJobNotFound     = errors.New("job not found")
	// ErrJobSettled reports a state transition attempted on a job that
	// already left the queued state, typically a redelivery.
	ErrJobSettled = errors.New("job already settled")
	// ErrLocalMode is returned by operations that need the remote
	// backend while the store is running local-only.
	ErrLocalMode = errors.New("operation unavailable in local-only mode")
)
