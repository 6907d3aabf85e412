package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing/iotest"
	"time"

	"havit-go/internal/catalog"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	IsDirectory bool
	Mtime       time.Time
	Atime       time.Time
	Ctime       time.Time

	// Failure injection.
	OpenErr         error
	ReadErr         error
	MetadataMissing bool
}

// MockFilesystemManager is an in-memory filesystem for testing. Paths are
// slash separated; every file's parent directories exist implicitly.
// Walks always visit children in name order.
type MockFilesystemManager struct {
	mu     sync.Mutex
	files  map[string]*MockFile
	opened []string
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string]*MockFile),
	}
}

// AddFile adds a regular file, creating its parent directories.
func (m *MockFilesystemManager) AddFile(path string, content []byte) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	f := &MockFile{Content: content, Mtime: now, Atime: now, Ctime: now}
	m.files[filepath.Clean(path)] = f
	m.addParents(path)
	return f
}

// AddDirectory adds an (empty) directory.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = &MockFile{IsDirectory: true}
	m.addParents(path)
}

func (m *MockFilesystemManager) addParents(path string) {
	for dir := filepath.Dir(filepath.Clean(path)); ; dir = filepath.Dir(dir) {
		if _, ok := m.files[dir]; !ok {
			m.files[dir] = &MockFile{IsDirectory: true}
		}
		if dir == filepath.Dir(dir) {
			return
		}
	}
}

// FailOpen makes Open of path return err.
func (m *MockFilesystemManager) FailOpen(path string, err error) {
	m.lookup(path).OpenErr = err
}

// FailRead makes reading path fail with err after its content.
func (m *MockFilesystemManager) FailRead(path string, err error) {
	m.lookup(path).ReadErr = err
}

// HideMetadata makes Metadata of path report ErrMetadataUnavailable.
func (m *MockFilesystemManager) HideMetadata(path string) {
	m.lookup(path).MetadataMissing = true
}

// Opened returns the paths passed to Open, in call order.
func (m *MockFilesystemManager) Opened() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.opened)
}

func (m *MockFilesystemManager) lookup(path string) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		panic(fmt.Sprintf("mock filesystem: no such file %s", path))
	}
	return f
}

func (m *MockFilesystemManager) get(path string) (*MockFile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(path)]
	return f, ok
}

func (m *MockFilesystemManager) children(dir string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir = filepath.Clean(dir)
	var names []string
	for p := range m.files {
		if p != dir && filepath.Dir(p) == dir {
			names = append(names, filepath.Base(p))
		}
	}
	slices.Sort(names)
	return names
}

func (m *MockFilesystemManager) Walk(root string, opts catalog.WalkOptions) iter.Seq2[*catalog.Entry, error] {
	return func(yield func(*catalog.Entry, error) bool) {
		f, ok := m.get(root)
		if !ok {
			yield(nil, &fs.PathError{Op: "lstat", Path: root, Err: fs.ErrNotExist})
			return
		}
		dir, name := splitMockPath(root)
		m.visit(&catalog.Entry{Path: root, Dir: dir, Name: name, Type: mockType(f), Info: mockInfo(name, f)}, opts, yield)
	}
}

func (m *MockFilesystemManager) visit(e *catalog.Entry, opts catalog.WalkOptions, yield func(*catalog.Entry, error) bool) bool {
	if e.Type != catalog.EntryDir {
		return yield(e, nil)
	}
	if !opts.ContentsFirst && !yield(e, nil) {
		return false
	}
	for _, name := range m.children(e.Path) {
		p := e.Path + "/" + name
		if strings.HasSuffix(e.Path, "/") {
			p = e.Path + name
		}
		f, _ := m.get(p)
		child := &catalog.Entry{Path: p, Dir: e.Path, Name: name, Type: mockType(f), Depth: e.Depth + 1, Info: mockInfo(name, f)}
		if !m.visit(child, opts, yield) {
			return false
		}
	}
	if opts.ContentsFirst {
		return yield(e, nil)
	}
	return true
}

func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.opened = append(m.opened, path)
	m.mu.Unlock()

	f, ok := m.get(path)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	if f.IsDirectory {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fmt.Errorf("is a directory")}
	}
	if f.OpenErr != nil {
		return nil, &fs.PathError{Op: "open", Path: path, Err: f.OpenErr}
	}

	var r io.Reader = bytes.NewReader(f.Content)
	if f.ReadErr != nil {
		r = io.MultiReader(r, iotest.ErrReader(f.ReadErr))
	}
	return io.NopCloser(r), nil
}

func (m *MockFilesystemManager) Metadata(entry *catalog.Entry) (*catalog.Metadata, error) {
	f, ok := m.get(entry.Path)
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: entry.Path, Err: fs.ErrNotExist}
	}
	if f.MetadataMissing {
		return nil, fmt.Errorf("%w: no timestamps for %s", catalog.ErrMetadataUnavailable, entry.Path)
	}
	return &catalog.Metadata{
		Size:  int64(len(f.Content)),
		Mtime: f.Mtime,
		Atime: f.Atime,
		Ctime: f.Ctime,
	}, nil
}

func mockType(f *MockFile) catalog.EntryType {
	if f.IsDirectory {
		return catalog.EntryDir
	}
	return catalog.EntryRegular
}

func splitMockPath(p string) (string, string) {
	i := strings.LastIndexByte(strings.TrimSuffix(p, "/"), '/')
	switch {
	case i < 0:
		return "", strings.TrimSuffix(p, "/")
	case i == 0:
		return "/", strings.TrimSuffix(p[1:], "/")
	default:
		return p[:i], strings.TrimSuffix(p[i+1:], "/")
	}
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name string
	file *MockFile
}

func mockInfo(name string, f *MockFile) fs.FileInfo {
	return &mockFileInfo{name: name, file: f}
}

func (i *mockFileInfo) Name() string       { return i.name }
func (i *mockFileInfo) Size() int64        { return int64(len(i.file.Content)) }
func (i *mockFileInfo) ModTime() time.Time { return i.file.Mtime }
func (i *mockFileInfo) IsDir() bool        { return i.file.IsDirectory }
func (i *mockFileInfo) Sys() any           { return i.file }

func (i *mockFileInfo) Mode() fs.FileMode {
	if i.file.IsDirectory {
		return fs.ModeDir | 0755
	}
	return 0644
}

// Compile-time check
var _ catalog.FilesystemManager = (*MockFilesystemManager)(nil)
