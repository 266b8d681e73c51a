package client

import "errors"

var (
	// ErrUnavailable covers every transient failure: no network, timeouts,
	// overloaded or failing authority. The mutation stays queued.
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnauthorized means the session is gone and could not be refreshed.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAuthorizationRejected means the entity is missing or not owned by
	// the caller. Retrying cannot succeed.
	ErrAuthorizationRejected = errors.New("rejected by authority")
	// ErrValidationRejected means the authority refused the payload.
	ErrValidationRejected = errors.New("validation rejected")
	// ErrAlreadyExists is returned by Register for a taken username.
	ErrAlreadyExists = errors.New("already exists")

	ErrLocalDataNotAvailable = errors.New("local data unavailable")
)
