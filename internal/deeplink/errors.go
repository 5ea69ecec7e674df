package deeplink

import "errors"

// Resolution failures. Callers match them with errors.Is.
var (
	// ErrMalformedInput is returned for a list-wrapped input too short to unwrap.
	ErrMalformedInput = errors.New("malformed activation input")
	// ErrInvalidURL is returned when the input does not parse as an absolute URL.
	ErrInvalidURL = errors.New("invalid activation url")
	// ErrMissingURLParameter is returned when a recognised link has no url query parameter.
	ErrMissingURLParameter = errors.New("failed to get profile url")
	// ErrImportFailed wraps a profile store failure.
	ErrImportFailed = errors.New("profile import failed")
)
