package permit

import (
	"context"
	"errors"
)

var (
	// ErrAccountBlocked marks a terminal deny from the account state checker.
	ErrAccountBlocked = errors.New("permit: account blocked")

	// ErrProviderUnavailable wraps a failed collaborator call.
	ErrProviderUnavailable = errors.New("permit: provider unavailable")

	// ErrInvalidAction is returned for action tokens that cannot be normalized.
	ErrInvalidAction = errors.New("permit: invalid action")

	// ErrMalformedGrant marks a grant row skipped during evaluation.
	ErrMalformedGrant = errors.New("permit: malformed grant")

	// ErrNilProvider is returned when a required collaborator is missing.
	ErrNilProvider = errors.New("permit: provider is required")

	// ErrStageExists is returned when a pipeline stage name is already registered.
	ErrStageExists = errors.New("permit: stage already registered")

	// ErrStageNotFound is returned when a pipeline stage name is unknown.
	ErrStageNotFound = errors.New("permit: stage not found")
)

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
