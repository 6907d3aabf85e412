package catalog

import (
	"errors"
	"fmt"
)

// Writer catalogs files: one record per regular file under a root.
type Writer struct {
	fsmgr  FilesystemManager
	hasher Hasher
	logger Logger
	opts   Options
}

// NewWriter creates a Writer.
func NewWriter(fsmgr FilesystemManager, hasher Hasher, logger Logger, opts Options) *Writer {
	return &Writer{
		fsmgr:  fsmgr,
		hasher: hasher,
		logger: logger,
		opts:   opts,
	}
}

// Add walks root and inserts a record for every regular file through tx.
// root may also name a single file. The returned tally's Bytes is the
// total number of bytes hashed. Any error leaves the tally partial and
// the caller must not commit tx.
func (w *Writer) Add(tx Tx, root string) (Tally, error) {
	var tally Tally

	root, err := w.opts.resolveRoot(root)
	if err != nil {
		return tally, err
	}

	progress := w.opts.progress()
	for entry, err := range w.fsmgr.Walk(root, BulkWalk(w.opts.FollowLinks)) {
		if err != nil {
			return tally, err
		}
		if !entry.IsRegular() {
			continue
		}

		n, err := w.addFile(tx, entry)
		if err != nil {
			if errors.Is(err, ErrMetadataUnavailable) && w.opts.MetadataPolicy == SkipOnMissingMetadata {
				w.logger.Warn("skipping file", "path", entry.Path, "error", err)
				tally.Skipped++
				continue
			}
			return tally, err
		}

		tally.Files++
		tally.Bytes += n
		progress.FileDone(entry.Path, n)
	}

	return tally, nil
}

// addFile reads metadata, hashes and inserts a single entry.
// Metadata is read first so a file we cannot describe is never hashed.
func (w *Writer) addFile(tx Tx, entry *Entry) (int64, error) {
	meta, err := w.fsmgr.Metadata(entry)
	if err != nil {
		return 0, fmt.Errorf("reading metadata of %s: %w", entry.Path, err)
	}

	digest, n, err := hashFile(w.fsmgr, w.hasher, entry.Path)
	if err != nil {
		return 0, err
	}

	rec := &Record{
		Name:  entry.Name,
		Path:  entry.Dir,
		Size:  meta.Size,
		Ctime: meta.Ctime.Local(),
		Mtime: meta.Mtime.Local(),
		Atime: meta.Atime.Local(),
		Hash:  digest,
	}
	if err := tx.InsertRecord(rec); err != nil {
		return 0, fmt.Errorf("inserting %s: %w", entry.Path, err)
	}

	w.logger.Debug("file cataloged", "path", entry.Path, "id", rec.ID, "hash", digest)
	return n, nil
}
