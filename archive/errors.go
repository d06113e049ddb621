package archive

import "errors"

// Extraction errors.
var (
	// ErrSecurityViolation is returned when an archive entry would
	// resolve outside the extraction sandbox.
	ErrSecurityViolation = errors.New("archive entry escapes extraction sandbox")

	// ErrUnsupportedFormat is returned for archive extensions the
	// extractor does not handle.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
)
