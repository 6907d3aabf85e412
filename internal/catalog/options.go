package catalog

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// MetadataPolicy decides what an add does when a file's metadata cannot be read.
type MetadataPolicy int

const (
	// AbortOnMissingMetadata fails the whole run.
	AbortOnMissingMetadata MetadataPolicy = iota
	// SkipOnMissingMetadata logs the file, counts it as skipped and moves on.
	SkipOnMissingMetadata
)

// ParseMetadataPolicy maps the config spelling to a MetadataPolicy.
// The empty string selects the default, abort.
func ParseMetadataPolicy(s string) (MetadataPolicy, error) {
	switch s {
	case "", "abort":
		return AbortOnMissingMetadata, nil
	case "skip":
		return SkipOnMissingMetadata, nil
	default:
		return 0, fmt.Errorf("unknown metadata policy: %q", s)
	}
}

func (p MetadataPolicy) String() string {
	if p == SkipOnMissingMetadata {
		return "skip"
	}
	return "abort"
}

// Options configures how adds and checks traverse and record files.
type Options struct {
	FollowLinks    bool
	MetadataPolicy MetadataPolicy
	// CanonicalizePaths makes each root absolute before walking, so the
	// same directory reached through different relative spellings is
	// stored under one path. Off by default: stored paths are verbatim.
	CanonicalizePaths bool
	// Progress is notified after each file; nil disables it.
	Progress Progress
}

func (o Options) progress() Progress {
	if o.Progress == nil {
		return NopProgress{}
	}
	return o.Progress
}

func (o Options) resolveRoot(root string) (string, error) {
	if !o.CanonicalizePaths {
		return root, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", root, err)
	}
	return abs, nil
}

// Tally counts what one add or check processed.
type Tally struct {
	Files   int64
	Skipped int64
	Bytes   int64
}

// Add folds o into t.
func (t *Tally) Add(o Tally) {
	t.Files += o.Files
	t.Skipped += o.Skipped
	t.Bytes += o.Bytes
}

// hashFile opens path and runs it through hasher. Failures while reading
// are reported as *fs.PathError naming the file.
func hashFile(fsmgr FilesystemManager, hasher Hasher, path string) (string, int64, error) {
	rc, err := fsmgr.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	digest, n, err := hasher.Sum(rc)
	if err != nil {
		return "", 0, &fs.PathError{Op: "hash", Path: path, Err: err}
	}
	return digest, n, nil
}
