package catalog

import "errors"

var (
	// ErrMetadataUnavailable means a file's size or a timestamp could not be read.
	ErrMetadataUnavailable = errors.New("file metadata unavailable")

	// ErrDuplicateRecord means an insert violated the unique (name, path) index.
	ErrDuplicateRecord = errors.New("file already cataloged")

	// ErrSchemaMissing means the files table does not exist (store not migrated).
	ErrSchemaMissing = errors.New("catalog schema missing")

	// ErrUnexpectedRowCount means an insert affected a number of rows other
	// than one. It indicates store corruption or driver misbehavior.
	ErrUnexpectedRowCount = errors.New("unexpected number of rows affected")
)

var (
	// ErrSnapshotNotFound means a vault holds no snapshot for the catalog.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrKeysMissing means snapshots are encrypted but no key pair exists.
	ErrKeysMissing = errors.New("encryption keys not found (run havit keys init)")
)
