//go:build !unix

package fs

import "io/fs"

type fileKey struct{}

// keyOf has no stable identity to offer here; the walker falls back to
// comparing against the directories currently being walked.
func keyOf(fs.FileInfo) (fileKey, bool) {
	return fileKey{}, false
}
