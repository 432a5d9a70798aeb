package access

import "errors"

var (
	// ErrInvalidRepositoryURL is returned when a
	// repository location does not name a host,
	// project and repo.
	ErrInvalidRepositoryURL = errors.New("invalid repository url")

	// ErrMissingIntegrationConfig is returned when no
	// integration is configured for the host.
	ErrMissingIntegrationConfig = errors.New("no matching integration configuration")

	// ErrMissingAuthorization is returned when neither
	// a token nor a username/password pair is
	// available.
	ErrMissingAuthorization = errors.New("authorization has not been provided")
)
