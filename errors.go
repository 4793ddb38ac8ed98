package petpal

import "errors"

// Sentinel errors for the memory and composition pipeline.
var (
	// ErrInvalidIdentifier is returned for malformed or empty user ids,
	// before any state is touched.
	ErrInvalidIdentifier = errors.New("invalid user identifier")

	// ErrEmptyCatalog means the story catalog holds no entries. This is a
	// configuration error and fatal at startup.
	ErrEmptyCatalog = errors.New("story catalog is empty")

	// ErrGenerationTimeout means the text generator did not answer within
	// the configured bound. The turn is retryable; no memory was committed.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrNotFound is returned when a story id has no catalog entry.
	ErrNotFound = errors.New("story not found")
)
