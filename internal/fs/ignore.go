package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-root ignore file read at the top of every walk.
const IgnoreFileName = ".havitignore"

// builtinIgnores are applied to every walk regardless of configuration.
var builtinIgnores = []string{IgnoreFileName}

type ignorePattern struct {
	glob      string
	wholePath bool // match against the path relative to the root, not the base name
}

// IgnoreMatcher decides which entries beneath a walk root are pruned.
// A pattern containing '/' is matched against the slash-separated path
// relative to the root; any other pattern is matched against the base
// name at every depth. Ignoring a directory prunes everything below it.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher parses raw pattern lines. Blank lines and '#' comments
// are dropped.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, ignorePattern{
			glob:      line,
			wholePath: strings.Contains(line, "/"),
		})
	}
	return m
}

// Empty reports whether the matcher can never match.
func (m *IgnoreMatcher) Empty() bool {
	return len(m.patterns) == 0
}

// Match reports whether rel, a path relative to the walk root, is ignored.
func (m *IgnoreMatcher) Match(rel string) bool {
	if rel == "" || m.Empty() {
		return false
	}

	slashed := filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, p := range m.patterns {
		subject := base
		if p.wholePath {
			subject = slashed
		}
		// Malformed globs never match.
		if ok, err := filepath.Match(p.glob, subject); err == nil && ok {
			return true
		}
	}
	return false
}

// ReadIgnoreFile returns the raw lines of an ignore file, or nil when it
// does not exist.
func ReadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file %s: %w", path, err)
	}
	return lines, nil
}

// matcherFor builds the matcher for one walk: built-in patterns, the
// configured patterns, and the root's .havitignore when root is a directory.
func (m *OSFilesystemManager) matcherFor(root string, rootIsDir bool) (*IgnoreMatcher, error) {
	lines := append([]string{}, builtinIgnores...)
	lines = append(lines, m.ignore...)
	if rootIsDir {
		fromFile, err := ReadIgnoreFile(joinPath(root, IgnoreFileName))
		if err != nil {
			return nil, err
		}
		lines = append(lines, fromFile...)
	}
	return NewIgnoreMatcher(lines), nil
}
