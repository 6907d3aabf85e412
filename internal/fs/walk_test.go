package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"havit-go/internal/catalog"
	"havit-go/internal/testutil"
)

// makeTree creates the given files (with content equal to their path) and
// directories (names ending in '/') under a fresh temp directory.
func makeTree(t *testing.T, paths ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		if p[len(p)-1] == '/' {
			if err := os.MkdirAll(full, 0755); err != nil {
				t.Fatalf("creating dir: %v", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("creating dir: %v", err)
		}
		if err := os.WriteFile(full, []byte(p), 0644); err != nil {
			t.Fatalf("writing file: %v", err)
		}
	}
	return root
}

func collect(t *testing.T, m *OSFilesystemManager, root string, opts catalog.WalkOptions) []*catalog.Entry {
	t.Helper()
	var entries []*catalog.Entry
	for e, err := range m.Walk(root, opts) {
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		entries = append(entries, e)
	}
	return entries
}

func relPaths(t *testing.T, root string, entries []*catalog.Entry) []string {
	t.Helper()
	var out []string
	for _, e := range entries {
		rel, err := filepath.Rel(root, e.Path)
		if err != nil {
			t.Fatalf("Rel() error = %v", err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestWalk_StableOrder(t *testing.T) {
	root := makeTree(t, "b.txt", "a/z.txt", "a/y.txt", "c/")
	m := NewOSFilesystemManager(nil)

	got := relPaths(t, root, collect(t, m, root, catalog.StableWalk(true)))
	want := []string{"a/y.txt", "a/z.txt", "a", "b.txt", "c", "."}
	if !slices.Equal(got, want) {
		t.Errorf("walk order = %v, want %v", got, want)
	}
}

func TestWalk_PreOrderSorted(t *testing.T) {
	root := makeTree(t, "b.txt", "a/z.txt", "a/y.txt")
	m := NewOSFilesystemManager(nil)

	got := relPaths(t, root, collect(t, m, root, catalog.WalkOptions{Sorted: true}))
	want := []string{".", "a", "a/y.txt", "a/z.txt", "b.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("walk order = %v, want %v", got, want)
	}
}

func TestWalk_BulkVisitsEverything(t *testing.T) {
	root := makeTree(t, "1", "2", "d/3", "d/e/4")
	m := NewOSFilesystemManager(nil)

	var regular []string
	for _, e := range collect(t, m, root, catalog.BulkWalk(true)) {
		if e.IsRegular() {
			regular = append(regular, e.Name)
		}
	}
	slices.Sort(regular)
	if want := []string{"1", "2", "3", "4"}; !slices.Equal(regular, want) {
		t.Errorf("regular files = %v, want %v", regular, want)
	}
}

func TestWalk_PathsAreVerbatim(t *testing.T) {
	root := makeTree(t, "a/b.txt")

	t.Run("trailing separator is not doubled or stored", func(t *testing.T) {
		m := NewOSFilesystemManager(nil)
		dir := filepath.Join(root, "a") + string(os.PathSeparator)
		var file *catalog.Entry
		for _, e := range collect(t, m, dir, catalog.StableWalk(true)) {
			if e.IsRegular() {
				file = e
			}
		}
		if file == nil {
			t.Fatal("file not found")
		}
		if file.Path != dir+"b.txt" {
			t.Errorf("Path = %q, want %q", file.Path, dir+"b.txt")
		}
		if want := filepath.Join(root, "a"); file.Dir != want {
			t.Errorf("Dir = %q, want %q", file.Dir, want)
		}
		if file.Name != "b.txt" {
			t.Errorf("Name = %q, want b.txt", file.Name)
		}
	})

	t.Run("relative root keeps its spelling", func(t *testing.T) {
		t.Chdir(root)
		m := NewOSFilesystemManager(nil)
		dot := "." + string(os.PathSeparator) + "a"
		var got []string
		for _, e := range collect(t, m, dot, catalog.StableWalk(true)) {
			got = append(got, e.Path)
		}
		want := []string{dot + string(os.PathSeparator) + "b.txt", dot}
		if !slices.Equal(got, want) {
			t.Errorf("paths = %v, want %v", got, want)
		}
	})

	t.Run("single file root", func(t *testing.T) {
		t.Chdir(filepath.Join(root, "a"))
		m := NewOSFilesystemManager(nil)
		entries := collect(t, m, "b.txt", catalog.BulkWalk(true))
		if len(entries) != 1 {
			t.Fatalf("got %d entries, want 1", len(entries))
		}
		if entries[0].Dir != "" || entries[0].Name != "b.txt" {
			t.Errorf("Dir, Name = %q, %q, want \"\", b.txt", entries[0].Dir, entries[0].Name)
		}
	})
}

func TestWalk_Depth(t *testing.T) {
	root := makeTree(t, "a/b/c.txt")
	m := NewOSFilesystemManager(nil)

	for _, e := range collect(t, m, root, catalog.StableWalk(true)) {
		rel, _ := filepath.Rel(root, e.Path)
		want := 0
		if rel != "." {
			want = strings.Count(filepath.ToSlash(rel), "/") + 1
		}
		if e.Depth != want {
			t.Errorf("%s: Depth = %d, want %d", rel, e.Depth, want)
		}
	}
}

func TestWalk_EmptyDirectory(t *testing.T) {
	root := t.TempDir()
	m := NewOSFilesystemManager(nil)

	entries := collect(t, m, root, catalog.BulkWalk(true))
	if len(entries) != 1 || entries[0].Type != catalog.EntryDir {
		t.Errorf("expected only the root directory, got %d entries", len(entries))
	}
}

func TestWalk_MissingRoot(t *testing.T) {
	m := NewOSFilesystemManager(nil)
	missing := filepath.Join(t.TempDir(), "nope")

	var errs []error
	for e, err := range m.Walk(missing, catalog.BulkWalk(true)) {
		if e != nil {
			t.Errorf("unexpected entry %s", e.Path)
		}
		errs = append(errs, err)
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if !errors.Is(errs[0], fs.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", errs[0])
	}
	var pathErr *fs.PathError
	if !errors.As(errs[0], &pathErr) || pathErr.Path != missing {
		t.Errorf("error = %v, want PathError naming %s", errs[0], missing)
	}
}

func TestWalk_DanglingLinkRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	link := filepath.Join(dir, "dangling")
	if err := os.Symlink(filepath.Join(dir, "gone"), link); err != nil {
		t.Fatalf("creating symlink: %v", err)
	}
	m := NewOSFilesystemManager(nil)

	var entries []*catalog.Entry
	var errs []error
	for e, err := range m.Walk(link, catalog.BulkWalk(true)) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) != 0 || len(errs) != 1 {
		t.Fatalf("got %d entries and %d errors, want only one error", len(entries), len(errs))
	}
	var pathErr *fs.PathError
	if !errors.As(errs[0], &pathErr) || pathErr.Path != link || !errors.Is(errs[0], fs.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist naming %s", errs[0], link)
	}

	t.Run("without following the link is the entry", func(t *testing.T) {
		got := collect(t, m, link, catalog.BulkWalk(false))
		if len(got) != 1 || got[0].Type != catalog.EntryOther {
			t.Errorf("entries = %v, want the link as other", got)
		}
	})
}

func TestWalk_StopsWhenConsumerStops(t *testing.T) {
	root := makeTree(t, "a", "b", "c", "d")
	m := NewOSFilesystemManager(nil)

	n := 0
	for range m.Walk(root, catalog.BulkWalk(true)) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("consumed %d entries, want 2", n)
	}
}

func TestWalk_Ignore(t *testing.T) {
	root := makeTree(t, "keep.txt", "skip.log", "build/out.o", "sub/build/keep.txt")
	if err := os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("build/\nbuild\n"), 0644); err != nil {
		t.Fatalf("writing ignore file: %v", err)
	}
	m := NewOSFilesystemManager([]string{"*.log"})

	var got []string
	for _, e := range collect(t, m, root, catalog.StableWalk(true)) {
		if e.IsRegular() {
			rel, _ := filepath.Rel(root, e.Path)
			got = append(got, filepath.ToSlash(rel))
		}
	}
	// "build" is a base-name pattern so it prunes at every depth; the
	// ignore file itself is never listed.
	want := []string{"keep.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestWalk_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	root := makeTree(t, "real/f.txt")
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")); err != nil {
		t.Fatalf("creating symlink: %v", err)
	}

	t.Run("not following treats links as other", func(t *testing.T) {
		m := NewOSFilesystemManager(nil)
		for _, e := range collect(t, m, root, catalog.StableWalk(false)) {
			if e.Name == "link" && e.Type != catalog.EntryOther {
				t.Errorf("link type = %v, want other", e.Type)
			}
		}
	})

	t.Run("following visits a directory once", func(t *testing.T) {
		m := NewOSFilesystemManager(nil)
		count := 0
		for _, e := range collect(t, m, root, catalog.StableWalk(true)) {
			if e.Name == "f.txt" {
				count++
			}
		}
		if count != 1 {
			t.Errorf("f.txt yielded %d times, want 1", count)
		}
	})

	t.Run("loop terminates", func(t *testing.T) {
		if err := os.Symlink(root, filepath.Join(root, "real", "up")); err != nil {
			t.Fatalf("creating symlink: %v", err)
		}
		m := NewOSFilesystemManager(nil)
		done := make(chan int)
		go func() {
			n := 0
			for range m.Walk(root, catalog.BulkWalk(true)) {
				n++
			}
			done <- n
		}()
		select {
		case n := <-done:
			if n == 0 {
				t.Error("walk yielded nothing")
			}
		case <-time.After(10 * time.Second):
			t.Fatal("walk did not terminate on a symlink loop")
		}
	})

	t.Run("dangling link is other", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.Symlink(filepath.Join(dir, "gone"), filepath.Join(dir, "dangling")); err != nil {
			t.Fatalf("creating symlink: %v", err)
		}
		m := NewOSFilesystemManager(nil)
		for _, e := range collect(t, m, dir, catalog.BulkWalk(true)) {
			if e.Name == "dangling" && e.Type != catalog.EntryOther {
				t.Errorf("dangling type = %v, want other", e.Type)
			}
		}
	})
}

func TestOSFilesystemManager_Metadata(t *testing.T) {
	root := makeTree(t, "f.txt")
	path := filepath.Join(root, "f.txt")
	mtime := time.Date(2020, 5, 17, 10, 30, 0, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	m := NewOSFilesystemManager(nil)
	var entry *catalog.Entry
	for _, e := range collect(t, m, root, catalog.BulkWalk(true)) {
		if e.IsRegular() {
			entry = e
		}
	}

	meta, err := m.Metadata(entry)
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "freebsd" && runtime.GOOS != "netbsd" {
		if !errors.Is(err, catalog.ErrMetadataUnavailable) {
			t.Fatalf("Metadata() error = %v, want ErrMetadataUnavailable", err)
		}
		return
	}
	if errors.Is(err, catalog.ErrMetadataUnavailable) {
		t.Skipf("temp filesystem does not record creation times: %v", err)
	}
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if meta.Size != int64(len("f.txt")) {
		t.Errorf("Size = %d, want %d", meta.Size, len("f.txt"))
	}
	if !meta.Mtime.Equal(mtime) {
		t.Errorf("Mtime = %v, want %v", meta.Mtime, mtime)
	}
	if !meta.Atime.Equal(mtime) {
		t.Errorf("Atime = %v, want %v", meta.Atime, mtime)
	}
	if meta.Ctime.IsZero() {
		t.Error("Ctime is zero")
	}

	t.Run("creation time survives chmod", func(t *testing.T) {
		time.Sleep(20 * time.Millisecond)
		if err := os.Chmod(path, 0600); err != nil {
			t.Fatalf("Chmod() error = %v", err)
		}
		after, err := m.Metadata(entry)
		if err != nil {
			t.Fatalf("Metadata() error = %v", err)
		}
		if !after.Ctime.Equal(meta.Ctime) {
			t.Errorf("Ctime moved from %v to %v after chmod", meta.Ctime, after.Ctime)
		}
	})

	t.Run("no stat data", func(t *testing.T) {
		_, err := m.Metadata(&catalog.Entry{Path: "x"})
		if !errors.Is(err, catalog.ErrMetadataUnavailable) {
			t.Errorf("Metadata() error = %v, want ErrMetadataUnavailable", err)
		}
	})
}

func TestOSFilesystemManager_MetadataPolicy(t *testing.T) {
	root := makeTree(t, "a.txt", "b.txt", "c.txt")
	noBirth := filepath.Join(root, "b.txt")

	m := NewOSFilesystemManager(nil)
	m.times = func(path string, info fs.FileInfo) (time.Time, time.Time, error) {
		if path == noBirth {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: filesystem does not record a creation time", catalog.ErrMetadataUnavailable)
		}
		return info.ModTime(), info.ModTime(), nil
	}

	run := func(t *testing.T, policy catalog.MetadataPolicy) (catalog.Tally, int64, error) {
		t.Helper()
		db := testutil.NewTestDatabase(t)
		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		w := catalog.NewWriter(m, testutil.NewHasher(t), catalog.NewNopLogger(), catalog.Options{
			FollowLinks:    true,
			MetadataPolicy: policy,
		})
		tally, addErr := w.Add(tx, root)
		if addErr != nil {
			tx.Rollback()
		} else if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		return tally, testutil.CountRecords(t, db), addErr
	}

	t.Run("abort", func(t *testing.T) {
		_, count, err := run(t, catalog.AbortOnMissingMetadata)
		if !errors.Is(err, catalog.ErrMetadataUnavailable) {
			t.Fatalf("Add() error = %v, want ErrMetadataUnavailable", err)
		}
		if !strings.Contains(err.Error(), noBirth) {
			t.Errorf("error %q does not name %s", err, noBirth)
		}
		if count != 0 {
			t.Errorf("records = %d, want 0", count)
		}
	})

	t.Run("skip", func(t *testing.T) {
		tally, count, err := run(t, catalog.SkipOnMissingMetadata)
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if tally.Files != 2 || tally.Skipped != 1 {
			t.Errorf("tally = %+v, want 2 files and 1 skipped", tally)
		}
		if count != 2 {
			t.Errorf("records = %d, want 2", count)
		}
	})
}

func TestOSFilesystemManager_Open(t *testing.T) {
	root := makeTree(t, "f.txt")
	m := NewOSFilesystemManager(nil)

	rc, err := m.Open(filepath.Join(root, "f.txt"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "f.txt" {
		t.Errorf("content = %q, want f.txt", data)
	}
}

func TestSplitPath(t *testing.T) {
	sep := string(os.PathSeparator)
	tests := []struct {
		in, dir, name string
	}{
		{"f.txt", "", "f.txt"},
		{"a" + sep + "f.txt", "a", "f.txt"},
		{"." + sep + "a" + sep + "f.txt", "." + sep + "a", "f.txt"},
		{sep + "f", sep, "f"},
		{"a" + sep, "", "a"},
	}
	for _, tt := range tests {
		dir, name := splitPath(tt.in)
		if dir != tt.dir || name != tt.name {
			t.Errorf("splitPath(%q) = %q, %q, want %q, %q", tt.in, dir, name, tt.dir, tt.name)
		}
	}
}

func TestTrimDir(t *testing.T) {
	sep := string(os.PathSeparator)
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"sub", "sub"},
		{"sub" + sep, "sub"},
		{"sub" + sep + sep, "sub"},
		{"." + sep + "a" + sep, "." + sep + "a"},
		{sep, sep},
	}
	for _, tt := range tests {
		if got := trimDir(tt.in); got != tt.want {
			t.Errorf("trimDir(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJoinPath(t *testing.T) {
	sep := string(os.PathSeparator)
	tests := []struct {
		dir, name, want string
	}{
		{"", "f", "f"},
		{"a", "f", "a" + sep + "f"},
		{"a" + sep, "f", "a" + sep + "f"},
		{"." + sep + "a", "f", "." + sep + "a" + sep + "f"},
	}
	for _, tt := range tests {
		if got := joinPath(tt.dir, tt.name); got != tt.want {
			t.Errorf("joinPath(%q, %q) = %q, want %q", tt.dir, tt.name, got, tt.want)
		}
	}
}
