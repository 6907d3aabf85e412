package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"havit-go/internal/catalog"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
type OSFilesystemManager struct {
	ignore []string
	// times reads access and creation times; statTimes outside tests.
	times func(path string, info fs.FileInfo) (atime, btime time.Time, err error)
}

// NewOSFilesystemManager creates a filesystem manager that operates on the
// real filesystem. ignorePatterns apply beneath every walked root, in
// addition to the root's own .havitignore.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignorePatterns, times: statTimes}
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Metadata returns the size and the three timestamps of a walked entry.
// Ctime is the file's creation (birth) time, not the inode change time.
func (m *OSFilesystemManager) Metadata(entry *catalog.Entry) (*catalog.Metadata, error) {
	info := entry.Info
	if info == nil {
		return nil, fmt.Errorf("%w: no stat data for %s", catalog.ErrMetadataUnavailable, entry.Path)
	}

	mtime := info.ModTime()
	if mtime.IsZero() {
		return nil, fmt.Errorf("%w: no modification time for %s", catalog.ErrMetadataUnavailable, entry.Path)
	}

	atime, btime, err := m.times(entry.Path, info)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", entry.Path, err)
	}

	return &catalog.Metadata{
		Size:  info.Size(),
		Ctime: btime,
		Mtime: mtime,
		Atime: atime,
	}, nil
}

// entryType classifies a FileInfo. Symlinks are only ever seen here when
// links are not being followed, and are then "other".
func entryType(info fs.FileInfo) catalog.EntryType {
	switch {
	case info.Mode().IsRegular():
		return catalog.EntryRegular
	case info.IsDir():
		return catalog.EntryDir
	default:
		return catalog.EntryOther
	}
}

// splitPath splits p into directory and base name without cleaning either
// part, so stored paths match what traversal produced.
func splitPath(p string) (dir, name string) {
	trimmed := strings.TrimRight(p, string(os.PathSeparator))
	if trimmed == "" {
		// p is the filesystem root itself.
		return "", p
	}
	i := strings.LastIndexByte(trimmed, os.PathSeparator)
	switch {
	case i < 0:
		return "", trimmed
	case i == 0:
		return trimmed[:1], trimmed[1:]
	default:
		return trimmed[:i], trimmed[i+1:]
	}
}

// trimDir drops trailing separators from a directory path used as a
// record's containing directory, so "sub/" and "sub" store the same path.
// The filesystem root keeps its single separator.
func trimDir(p string) string {
	trimmed := strings.TrimRight(p, string(os.PathSeparator))
	if trimmed == "" && p != "" {
		return p[:1]
	}
	return trimmed
}

// joinPath appends name to dir without cleaning dir.
func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	if strings.HasSuffix(dir, string(os.PathSeparator)) {
		return dir + name
	}
	return dir + string(os.PathSeparator) + name
}

// Compile-time check that OSFilesystemManager implements catalog.FilesystemManager
var _ catalog.FilesystemManager = (*OSFilesystemManager)(nil)
