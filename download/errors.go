package download

import "errors"

// Resolution errors.
var (
	// ErrResolutionFailed is returned when no strategy was applicable
	// or every applicable strategy failed.
	ErrResolutionFailed = errors.New("no download strategy succeeded")

	// ErrLegacyScheme is returned for version-control URL schemes that
	// are rejected before any strategy runs.
	ErrLegacyScheme = errors.New("legacy version control scheme not supported")
)
