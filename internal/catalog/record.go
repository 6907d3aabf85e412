package catalog

import (
	"path/filepath"
	"time"
)

// UnhashedSentinel is stored in the hash column for rows without a digest.
// Rows carrying it never count as duplicates of each other.
const UnhashedSentinel = "-"

// Record is one cataloged file.
type Record struct {
	ID    int64
	Name  string // base name
	Path  string // containing directory, as traversed
	Size  int64
	Ctime time.Time // creation (birth) time
	Mtime time.Time
	Atime time.Time
	Hash  string
}

// FullPath joins the record's directory and name for display.
func (r *Record) FullPath() string {
	if r.Path == "" {
		return r.Name
	}
	return filepath.Join(r.Path, r.Name)
}

// DuplicateGroup is a set of records that share a content hash.
type DuplicateGroup struct {
	Hash  string
	Count int64
	Size  int64 // size of one copy
}

// Wasted returns the bytes taken by all copies beyond the first.
func (g *DuplicateGroup) Wasted() int64 {
	if g.Count < 2 {
		return 0
	}
	return g.Size * (g.Count - 1)
}

// Run is a committed invocation that added records to the catalog.
type Run struct {
	Seq          int64
	ID           string
	Operation    string
	StartedAt    time.Time
	FinishedAt   time.Time
	FilesAdded   int64
	FilesChecked int64
	Bytes        int64
}
