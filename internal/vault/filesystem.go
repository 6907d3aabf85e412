package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"havit-go/internal/catalog"
)

// FileSystemVault stores snapshots as files, typically on a mounted
// backup disk:
//
//	<root>/
//	  snapshots/
//	    <catalogID>.db       (latest snapshot)
//	    <catalogID>.version  (its version)
type FileSystemVault struct {
	name         string
	root         string
	snapshotsDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	snapshotsDir := filepath.Join(root, "snapshots")
	if err := os.MkdirAll(snapshotsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &FileSystemVault{
		name:         name,
		root:         root,
		snapshotsDir: snapshotsDir,
	}, nil
}

func (v *FileSystemVault) Name() string {
	return v.name
}

// PutSnapshot replaces the stored snapshot atomically and then records
// its version. A crash between the two leaves the old version number,
// which only makes the vault look older than it is.
func (v *FileSystemVault) PutSnapshot(catalogID string, r io.Reader, size int64, version int64) error {
	if err := v.writeFile(v.snapshotPath(catalogID), r, size); err != nil {
		return err
	}

	versionData := strings.NewReader(strconv.FormatInt(version, 10))
	return v.writeFile(v.versionPath(catalogID), versionData, versionData.Size())
}

func (v *FileSystemVault) GetSnapshot(catalogID string, w io.Writer) error {
	f, err := os.Open(v.snapshotPath(catalogID))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w for catalog %s", catalog.ErrSnapshotNotFound, catalogID)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// GetSnapshotVersion returns 0 if no version file exists.
func (v *FileSystemVault) GetSnapshotVersion(catalogID string) (int64, error) {
	data, err := os.ReadFile(v.versionPath(catalogID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the vault directories exist and are writable.
func (v *FileSystemVault) ValidateSetup() error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	marker, err := os.CreateTemp(v.snapshotsDir, ".marker-*")
	if err != nil {
		return fmt.Errorf("vault not writable: %w", err)
	}
	marker.Close()
	return os.Remove(marker.Name())
}

func (v *FileSystemVault) snapshotPath(catalogID string) string {
	return filepath.Join(v.snapshotsDir, catalogID+".db")
}

func (v *FileSystemVault) versionPath(catalogID string) string {
	return filepath.Join(v.snapshotsDir, catalogID+".version")
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements catalog.Vault
var _ catalog.Vault = (*FileSystemVault)(nil)
