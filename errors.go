package zdc

import "errors"

// Errors reported by container operations.
// Callers should match them with errors.Is;
// most functions in this module wrap them with additional context.
var (
	// ErrSchemaViolation means a required attribute is missing or malformed.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrInvalidName means a qualified item name is malformed,
	// or a write collides with a reserved name.
	ErrInvalidName = errors.New("invalid item name")

	// ErrImmutable means a mutation was attempted on an immutable container.
	ErrImmutable = errors.New("immutable container")

	// ErrNotFound is the error for a missing item or a missing remote dataset.
	ErrNotFound = errors.New("not found")

	// ErrStaleWrite means a multi-step upload did not strictly increase
	// the modification time of the remote copy.
	ErrStaleWrite = errors.New("stale write")

	// ErrImmutableRemote means an attempt to alter a remote dataset
	// that was marked complete.
	ErrImmutableRemote = errors.New("immutable remote dataset")

	// ErrNotOwner means a supersession attempt by a principal
	// that did not create the dataset being superseded.
	ErrNotOwner = errors.New("not the dataset owner")

	// ErrAlreadyStatic is the error for freezing an already-frozen container.
	ErrAlreadyStatic = errors.New("container is already static")

	// ErrCorruptArchive means an archive file is unreadable
	// or is missing its reserved entries.
	ErrCorruptArchive = errors.New("corrupt archive")
)
