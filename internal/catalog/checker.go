package catalog

import (
	"fmt"
	"io"
)

// Checker reports, for each file under a root, how many catalog records
// share its content. It never writes to the store.
type Checker struct {
	fsmgr  FilesystemManager
	hasher Hasher
	out    io.Writer
	logger Logger
	opts   Options
}

// NewChecker creates a Checker that prints one "<count>: <path>" line per
// file to out.
func NewChecker(fsmgr FilesystemManager, hasher Hasher, out io.Writer, logger Logger, opts Options) *Checker {
	return &Checker{
		fsmgr:  fsmgr,
		hasher: hasher,
		out:    out,
		logger: logger,
		opts:   opts,
	}
}

// Check walks root in name order, contents before their directory, and
// reports the match count for every regular file. Counts are taken through
// tx so records inserted earlier in the same run are included. The
// returned tally's Bytes is the total number of bytes hashed.
func (c *Checker) Check(tx Tx, root string) (Tally, error) {
	var tally Tally

	root, err := c.opts.resolveRoot(root)
	if err != nil {
		return tally, err
	}

	progress := c.opts.progress()
	for entry, err := range c.fsmgr.Walk(root, StableWalk(c.opts.FollowLinks)) {
		if err != nil {
			return tally, err
		}
		if !entry.IsRegular() {
			continue
		}

		digest, n, err := hashFile(c.fsmgr, c.hasher, entry.Path)
		if err != nil {
			return tally, err
		}

		count, err := tx.CountByHash(digest)
		if err != nil {
			return tally, fmt.Errorf("counting matches for %s: %w", entry.Path, err)
		}

		if _, err := fmt.Fprintf(c.out, "%d: %s\n", count, entry.Path); err != nil {
			return tally, fmt.Errorf("writing check result: %w", err)
		}
		c.logger.Debug("file checked", "path", entry.Path, "hash", digest, "matches", count)

		tally.Files++
		tally.Bytes += n
		progress.FileDone(entry.Path, n)
	}

	return tally, nil
}
