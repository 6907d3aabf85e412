package catalog

import (
	"io/fs"
	"time"
)

// EntryType classifies a filesystem entry yielded by a walk.
type EntryType int

const (
	EntryOther EntryType = iota
	EntryRegular
	EntryDir
)

func (t EntryType) String() string {
	switch t {
	case EntryRegular:
		return "regular"
	case EntryDir:
		return "dir"
	default:
		return "other"
	}
}

// Entry is one filesystem entry reached during a walk.
// Path is the full path exactly as traversed; Dir and Name are its
// directory and base name split without cleaning, so "./a/b.txt" has
// Dir "./a" and a root file "b.txt" has Dir "".
type Entry struct {
	Path  string
	Dir   string
	Name  string
	Type  EntryType
	Depth int
	Info  fs.FileInfo
}

// IsRegular reports whether the entry is a regular file.
func (e *Entry) IsRegular() bool {
	return e.Type == EntryRegular
}

// Metadata holds the per-file fields a record needs from the filesystem.
type Metadata struct {
	Size  int64
	Ctime time.Time // creation (birth) time
	Mtime time.Time
	Atime time.Time
}

// WalkOptions controls traversal order and link handling.
type WalkOptions struct {
	FollowLinks bool
	// Sorted orders each directory's children by file name.
	// Unsorted walks use the order the OS returns.
	Sorted bool
	// ContentsFirst yields a directory after everything beneath it.
	ContentsFirst bool
}

// BulkWalk is the traversal used for cataloging: arrival order, fastest.
func BulkWalk(followLinks bool) WalkOptions {
	return WalkOptions{FollowLinks: followLinks}
}

// StableWalk is the traversal used for presence checks, deterministic
// across runs so output can be diffed and scripted against.
func StableWalk(followLinks bool) WalkOptions {
	return WalkOptions{FollowLinks: followLinks, Sorted: true, ContentsFirst: true}
}
