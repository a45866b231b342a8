package portfolio

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks caller-supplied values that failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSlugTaken is returned when another user already owns the requested slug.
	ErrSlugTaken = errors.New("slug already taken")
	// ErrPremiumRequired guards customization features.
	ErrPremiumRequired = errors.New("premium subscription required")
	// ErrUnreachable means the target page could not be fetched or parsed.
	ErrUnreachable = errors.New("page unreachable")
	// ErrRateLimited is returned when an owner creates projects too quickly.
	ErrRateLimited = errors.New("rate limited")
)
