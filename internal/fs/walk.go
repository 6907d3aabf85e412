package fs

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"havit-go/internal/catalog"
)

// Walk yields every entry at and beneath root, root first unless
// opts.ContentsFirst is set. Errors are yielded in place of an entry; the
// consumer decides whether to stop. A failure to stat root is the only
// entry in that case.
//
// When links are followed, a directory already on the walk (a symlink
// loop, or a second link to the same directory) is not descended into
// again.
func (m *OSFilesystemManager) Walk(root string, opts catalog.WalkOptions) iter.Seq2[*catalog.Entry, error] {
	return func(yield func(*catalog.Entry, error) bool) {
		w := &walker{
			opts:    opts,
			yield:   yield,
			visited: make(map[fileKey]struct{}),
		}

		info, err := w.statRoot(root)
		if err != nil {
			yield(nil, err)
			return
		}

		w.ignore, err = m.matcherFor(root, info.IsDir())
		if err != nil {
			yield(nil, err)
			return
		}

		dir, name := splitPath(root)
		w.visit(&catalog.Entry{
			Path: root,
			Dir:  dir,
			Name: name,
			Type: entryType(info),
			Info: info,
		}, "")
	}
}

type walker struct {
	opts    catalog.WalkOptions
	ignore  *IgnoreMatcher
	yield   func(*catalog.Entry, error) bool
	visited map[fileKey]struct{}
	// ancestors is used for loop detection where no file key is available.
	ancestors []fs.FileInfo
}

// statRoot resolves the requested root. Unlike entries found beneath it,
// a root that is a dangling link is an error.
func (w *walker) statRoot(root string) (fs.FileInfo, error) {
	if w.opts.FollowLinks {
		return os.Stat(root)
	}
	return os.Lstat(root)
}

func (w *walker) stat(path string) (fs.FileInfo, error) {
	if w.opts.FollowLinks {
		info, err := os.Stat(path)
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			return info, err
		}
		// A dangling link is reported as itself rather than as an error.
		if linfo, lerr := os.Lstat(path); lerr == nil && linfo.Mode()&fs.ModeSymlink != 0 {
			return linfo, nil
		}
		return nil, err
	}
	return os.Lstat(path)
}

// visit yields e and, for directories, everything beneath it. It returns
// false once the consumer has stopped.
func (w *walker) visit(e *catalog.Entry, rel string) bool {
	if e.Type != catalog.EntryDir {
		return w.yield(e, nil)
	}

	if w.opts.FollowLinks {
		if w.seen(e.Info) {
			return true
		}
		w.ancestors = append(w.ancestors, e.Info)
		defer func() { w.ancestors = w.ancestors[:len(w.ancestors)-1] }()
	}

	if !w.opts.ContentsFirst && !w.yield(e, nil) {
		return false
	}

	names, err := w.readDir(e.Path)
	if err != nil && !w.yield(nil, err) {
		return false
	}

	for _, name := range names {
		childRel := name
		if rel != "" {
			childRel = filepath.Join(rel, name)
		}
		if w.ignore.Match(childRel) {
			continue
		}

		childPath := joinPath(e.Path, name)
		info, err := w.stat(childPath)
		if err != nil {
			if !w.yield(nil, err) {
				return false
			}
			continue
		}

		child := &catalog.Entry{
			Path:  childPath,
			Dir:   trimDir(e.Path),
			Name:  name,
			Type:  entryType(info),
			Depth: e.Depth + 1,
			Info:  info,
		}
		if !w.visit(child, childRel) {
			return false
		}
	}

	if w.opts.ContentsFirst && !w.yield(e, nil) {
		return false
	}
	return true
}

// seen records info's directory and reports whether it was reached before.
func (w *walker) seen(info fs.FileInfo) bool {
	if key, ok := keyOf(info); ok {
		if _, dup := w.visited[key]; dup {
			return true
		}
		w.visited[key] = struct{}{}
		return false
	}
	for _, a := range w.ancestors {
		if os.SameFile(a, info) {
			return true
		}
	}
	return false
}

// readDir returns the names in dir, sorted by name if requested. On error
// the names read so far are returned with it.
func (w *walker) readDir(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if w.opts.Sorted {
		slices.SortFunc(names, strings.Compare)
	}
	return names, err
}
