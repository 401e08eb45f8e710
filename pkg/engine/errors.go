package engine

import "errors"

// Error taxonomy for the retrieval subsystem. Components absorb the
// recoverable conditions at their boundary and degrade; only data-corrupting
// conditions propagate to callers.
var (
	// ErrUnavailable reports the engine is unreachable. Non-fatal: callers
	// degrade to whatever capability remains.
	ErrUnavailable = errors.New("search engine unavailable")

	// ErrIndexNotFound reports a missing index.
	ErrIndexNotFound = errors.New("index not found")

	// ErrSchemaInvalid reports a missing or misconfigured field. Non-fatal:
	// callers degrade to lexical search.
	ErrSchemaInvalid = errors.New("index schema invalid")

	// ErrValidation reports a malformed input record. The record is dropped
	// and the batch continues.
	ErrValidation = errors.New("record validation failed")

	// ErrMigrationEmpty reports that post-copy verification found no data.
	// Fatal: the migration aborts before any destructive step.
	ErrMigrationEmpty = errors.New("migration verification found no documents")

	// ErrPartialWrite reports a bulk operation with per-item failures. The
	// call as a whole still succeeds; the count is reported.
	ErrPartialWrite = errors.New("bulk write partially failed")
)
