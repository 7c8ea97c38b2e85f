package domain

import "errors"

var (
	// ErrRateLimited marks a generation-service quota rejection; callers may retry.
	ErrRateLimited = errors.New("generation service rate limited")

	// ErrBadFormat marks a messaging-endpoint rejection of formatted text;
	// callers fall back to plain text.
	ErrBadFormat = errors.New("messaging endpoint rejected formatting")

	// ErrNoHeadlines means the scan stage produced nothing to select from.
	ErrNoHeadlines = errors.New("no recent headlines")

	// ErrEmptySelection means topic selection returned nothing usable.
	ErrEmptySelection = errors.New("empty topic selection")

	// ErrNoEvidence is the research circuit breaker: every topic came back empty.
	ErrNoEvidence = errors.New("no evidence collected for any topic")

	// ErrRunActive means a previous run still holds the lease; the trigger is skipped.
	ErrRunActive = errors.New("another run is still active")
)
