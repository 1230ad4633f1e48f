package domain

import "errors"

// Failure taxonomy for the engine. Callers match with errors.Is;
// adapters and use cases wrap these with fmt.Errorf("...: %w", ...).
var (
	// ErrValidation rejects malformed input before any side effect.
	ErrValidation = errors.New("validation failed")

	// ErrDimensionMismatch rejects a vector whose length differs from
	// the index's fixed dimension. The offending batch is dropped
	// whole; the index is unchanged.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmbedding is an external embedding-call failure.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration is an external generation-call failure.
	ErrGeneration = errors.New("generation failed")

	// ErrSessionNotFound means the session id is unknown; the caller
	// must create a new session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired means the session idled past its timeout; the
	// caller must create a new session.
	ErrSessionExpired = errors.New("session expired")

	// ErrPersistence is a snapshot save/load failure. In-memory state
	// is never affected.
	ErrPersistence = errors.New("persistence failed")

	// ErrTimeout means the request was abandoned cleanly after the
	// caller-supplied deadline elapsed mid-request.
	ErrTimeout = errors.New("request timed out")
)
