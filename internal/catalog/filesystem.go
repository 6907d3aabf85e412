package catalog

import (
	"io"
	"iter"
)

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Walk lazily yields the entries reachable from root, root included.
	// Errors naming the offending path are yielded in place of an entry;
	// the walk continues unless the consumer stops.
	Walk(root string, opts WalkOptions) iter.Seq2[*Entry, error]

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Metadata returns size and timestamps for a walked entry. Missing
	// fields are reported as an error wrapping ErrMetadataUnavailable.
	Metadata(entry *Entry) (*Metadata, error)
}

// Hasher computes a content digest over a stream.
type Hasher interface {
	// Sum reads r to the end and returns the lowercase hex digest and the
	// number of bytes read.
	Sum(r io.Reader) (string, int64, error)
}
